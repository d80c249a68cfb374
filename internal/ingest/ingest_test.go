package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payphone-api/internal/loader"
	"payphone-api/internal/payphone"
	"payphone-api/internal/telstra"
)

// fakeLister：每个搜索点第一页返回固定数据，其余页为空；failFrom 指定的页返回错误
type fakeLister struct {
	mu       sync.Mutex
	pages    map[telstra.Point][]telstra.Payphone
	failFrom int
	calls    int
}

func (f *fakeLister) ListPage(_ context.Context, pt telstra.Point, from int) ([]telstra.Payphone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if from == f.failFrom {
		return nil, errors.New("boom")
	}
	if from == 0 {
		return f.pages[pt], nil
	}
	return nil, nil
}

var (
	ptA = telstra.Point{Lat: -34.87, Lon: 147.58}
	ptB = telstra.Point{Lat: -21.17, Lon: 149.01}

	phoneSyd = telstra.Payphone{Latitude: -33.8688, Longitude: 151.2093, Address: "1 George St", State: "NSW", Postcode: "2000", CabinetID: "C1", CLI: "0290000000"}
	phoneMel = telstra.Payphone{Latitude: -37.8136, Longitude: 144.9631, Address: "1 Collins St", State: "VIC", Postcode: "3000", CabinetID: "C2", CLI: "0390000000"}
	phoneBne = telstra.Payphone{Latitude: -27.4698, Longitude: 153.0251, Address: "1 Queen St", State: "QLD", Postcode: "4000", CabinetID: "C3", CLI: "0790000000"}
)

func regions() []telstra.Region {
	return []telstra.Region{{Name: "A", Point: ptA}, {Name: "B", Point: ptB}}
}

func TestFetchDedupesAcrossRegions(t *testing.T) {
	ls := &fakeLister{failFrom: -1, pages: map[telstra.Point][]telstra.Payphone{
		ptA: {phoneSyd, phoneMel},
		ptB: {phoneMel, phoneBne},
	}}
	list, rep, err := Fetch(context.Background(), ls, regions(), 300)
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Pages)
	assert.Equal(t, 0, rep.FailedPages)
	assert.Equal(t, 4, rep.Raw)
	assert.Equal(t, 3, rep.Unique)
	require.Len(t, list, 3)

	again, _, err := Fetch(context.Background(), ls, regions(), 300)
	require.NoError(t, err)
	assert.Equal(t, list, again, "output order is stable")
}

func TestFetchSkipsFailedPages(t *testing.T) {
	ls := &fakeLister{failFrom: 100, pages: map[telstra.Point][]telstra.Payphone{ptA: {phoneSyd}}}
	list, rep, err := Fetch(context.Background(), ls, regions(), 300)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.FailedPages)
	assert.Len(t, list, 1)
	assert.Equal(t, 6, ls.calls, "pagination continues after a failed page")
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Fetch(ctx, &fakeLister{failFrom: -1}, regions(), 300)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeImporter struct {
	id   string
	list []telstra.Payphone
}

func (f *fakeImporter) Import(_ context.Context, id string, list []telstra.Payphone) (int, error) {
	f.id, f.list = id, list
	return len(list), nil
}

func TestRefresh(t *testing.T) {
	ls := &fakeLister{failFrom: -1, pages: map[telstra.Point][]telstra.Payphone{ptA: {phoneSyd, phoneMel}}}
	imp := &fakeImporter{}
	id, _, err := Refresh(context.Background(), ls, imp, regions(), 100)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, imp.id)
	assert.Len(t, imp.list, 2)
}

func TestRefreshNoDataSkipsImport(t *testing.T) {
	imp := &fakeImporter{}
	_, _, err := Refresh(context.Background(), &fakeLister{failFrom: 0}, imp, regions(), 100)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, imp.list)
}

func TestFilterState(t *testing.T) {
	got := FilterState([]telstra.Payphone{phoneSyd, phoneMel, phoneBne}, "NSW")
	require.Len(t, got, 1)
	assert.Equal(t, "1 George St", got[0].Address)
	assert.Empty(t, got[0].State)
	assert.Empty(t, FilterState(nil, "NSW"))
}

func TestEncodeGeoJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeGeoJSON(&buf, []telstra.Payphone{phoneSyd}))
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, []float64{151.2093, -33.8688}, fc.Features[0].Geometry.Coordinates)
	assert.Equal(t, "NSW", fc.Features[0].Properties["state"])
	assert.Equal(t, "0290000000", fc.Features[0].Properties["number"])
}

func TestWriteFilesLoadableByFileSource(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteFiles(dir, []telstra.Payphone{phoneSyd, phoneMel, phoneBne}, "NSW")
	require.NoError(t, err)
	assert.Len(t, paths, 4)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}

	raw, err := loader.FileSource{Path: filepath.Join(dir, "payphones_data.json")}.Fetch(context.Background())
	require.NoError(t, err)
	st, err := payphone.Load(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Len())
	assert.Equal(t, "2000", st.At(0).Postcode)
	assert.Equal(t, "NSW", st.At(0).PayloadString("state"))

	raw, err = loader.FileSource{Path: filepath.Join(dir, "payphones_data_nsw.json")}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw, 1)
	_, hasState := raw[0]["state"]
	assert.False(t, hasState)
}

func TestNextMondayAt(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	// 2024-01-01 是周一
	cases := []struct {
		now  time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 1, 2, 0, 0, 0, loc), time.Date(2024, 1, 1, 3, 0, 0, 0, loc)},
		{time.Date(2024, 1, 1, 3, 0, 0, 0, loc), time.Date(2024, 1, 8, 3, 0, 0, 0, loc)},
		{time.Date(2024, 1, 3, 12, 0, 0, 0, loc), time.Date(2024, 1, 8, 3, 0, 0, 0, loc)},
		{time.Date(2024, 1, 7, 23, 0, 0, 0, loc), time.Date(2024, 1, 8, 3, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		got := nextMondayAt(tc.now, loc, 3)
		assert.True(t, got.Equal(tc.want), "now=%v got=%v want=%v", tc.now, got, tc.want)
	}
}
