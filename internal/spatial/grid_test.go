package spatial

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payphone-api/internal/payphone"
)

func load(t *testing.T, pts ...[2]float64) *payphone.Store {
	t.Helper()
	raw := make([]payphone.RawRecord, 0, len(pts))
	for _, p := range pts {
		raw = append(raw, payphone.RawRecord{"latitude": p[0], "longitude": p[1], "postcode": "0000"})
	}
	st, err := payphone.Load(raw)
	require.NoError(t, err)
	return st
}

func TestBuildRejectsBadCellSize(t *testing.T) {
	st := load(t, [2]float64{1, 1})
	for _, s := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, err := Build(st, s)
		assert.ErrorIs(t, err, ErrBadCellSize)
	}
}

func TestKeyUsesFloor(t *testing.T) {
	g, err := Build(load(t), 0.5)
	require.NoError(t, err)
	assert.Equal(t, CellKey{Lat: 1, Lon: 2}, g.Key(0.5, 1.0), "exact boundary goes to the upper cell")
	assert.Equal(t, CellKey{Lat: -1, Lon: -1}, g.Key(-0.1, -0.4), "negatives floor away from zero")
	assert.Equal(t, CellKey{Lat: -2, Lon: 0}, g.Key(-1.0, 0.0))
}

func TestEveryRecordInExactlyOneCell(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	var pts [][2]float64
	for i := 0; i < 2000; i++ {
		pts = append(pts, [2]float64{r.Float64()*30 - 40, r.Float64()*40 + 113})
	}
	st := load(t, pts...)
	g, err := Build(st, 0.25)
	require.NoError(t, err)

	seen := make(map[int]int)
	for k, ps := range g.cells {
		for _, p := range ps {
			seen[p]++
			rec := st.At(p)
			assert.Equal(t, k, g.Key(rec.Latitude, rec.Longitude))
		}
	}
	require.Len(t, seen, st.Len())
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
	assert.Equal(t, st.Len(), g.Len())
}

func TestCandidatesCoverNeighbourhood(t *testing.T) {
	// 0: own cell, 1: east neighbour, 2: diagonal neighbour, 3: two cells away
	st := load(t,
		[2]float64{-33.85, 151.25},
		[2]float64{-33.85, 151.35},
		[2]float64{-33.95, 151.15},
		[2]float64{-33.65, 151.25},
	)
	g, err := Build(st, 0.1)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, g.Candidates(-33.85, 151.25))
	assert.Empty(t, g.Candidates(10, 10))
}

func TestRingsPartitionTheGrid(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	var pts [][2]float64
	for i := 0; i < 300; i++ {
		pts = append(pts, [2]float64{r.Float64()*4 - 35, r.Float64()*4 + 149})
	}
	st := load(t, pts...)
	g, err := Build(st, 0.2)
	require.NoError(t, err)

	lat, lon := -33.0, 151.0
	maxRing := g.MaxRing(lat, lon)
	var all []int
	for ring := 0; ring <= maxRing; ring++ {
		all = append(all, g.Ring(lat, lon, ring)...)
	}
	slices.Sort(all)
	want := make([]int, st.Len())
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, all)

	nine := append(g.Ring(lat, lon, 0), g.Ring(lat, lon, 1)...)
	slices.Sort(nine)
	assert.Equal(t, g.Candidates(lat, lon), nine)
	assert.Nil(t, g.Ring(lat, lon, -1))
}

func TestMaxRingEmpty(t *testing.T) {
	g, err := Build(load(t), DefaultCellSize)
	require.NoError(t, err)
	assert.Equal(t, -1, g.MaxRing(0, 0))
	assert.Equal(t, 0, g.CellCount())
}
