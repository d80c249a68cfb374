package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payphone-api/internal/payphone"
)

func testStore(t *testing.T) *payphone.Store {
	t.Helper()
	st, err := payphone.Load([]payphone.RawRecord{
		{"id": 1, "latitude": -33.8688, "longitude": 151.2093, "postcode": "2000", "address": "1 George St", "state": "NSW"},
		{"id": 2, "latitude": -33.88, "longitude": 151.21, "postcode": "2000"},
		{"id": 3, "latitude": -34.0, "longitude": 151.0, "postcode": "2010", "number": "0299990000"},
	})
	require.NoError(t, err)
	return st
}

func assertRoundTrip(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	c := New(kv)

	_, _, err := c.Read(ctx)
	require.ErrorIs(t, err, ErrCacheMiss)

	st := testStore(t)
	require.NoError(t, c.Write(ctx, "v1", st))
	v, got, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, st.Records(), got.Records())

	// last write wins
	require.NoError(t, c.Write(ctx, "v2", st))
	v, _, err = c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestMemRoundTrip(t *testing.T) {
	assertRoundTrip(t, NewMemKV())
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "payphones.db")
	kv, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()
	assertRoundTrip(t, kv)

	// survives reopen
	require.NoError(t, kv.Close())
	kv2, err := OpenSQLiteKV(path)
	require.NoError(t, err)
	defer kv2.Close()
	v, st, err := New(kv2).Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, 3, st.Len())
}

func TestRedisRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr})
	defer rc.Close()
	ctx := context.Background()
	require.NoError(t, rc.Del(ctx, PayloadKey, VersionKey).Err())
	assertRoundTrip(t, NewRedisKV(rc))
}

func TestEmptyStoreRoundTrip(t *testing.T) {
	st, err := payphone.Load(nil)
	require.NoError(t, err)
	c := New(NewMemKV())
	require.NoError(t, c.Write(context.Background(), "empty", st))
	v, got, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "empty", v)
	assert.Equal(t, 0, got.Len())
}

func TestIntegerPayloadRoundTrip(t *testing.T) {
	st, err := payphone.Load([]payphone.RawRecord{
		{"id": 1, "latitude": -33.8688, "longitude": 151.2093, "postcode": "2000",
			"cabinet_id": 42, "lines": []any{int64(1), uint8(2)}, "meta": map[string]any{"floor": int32(3)}},
	})
	require.NoError(t, err)
	c := New(NewMemKV())
	require.NoError(t, c.Write(context.Background(), "v1", st))
	_, got, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st.Records(), got.Records())
}

func TestReadFailsSoft(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		seed map[string]string
	}{
		{"version only", map[string]string{VersionKey: "v1"}},
		{"payload only", map[string]string{PayloadKey: "[]"}},
		{"empty version", map[string]string{VersionKey: "", PayloadKey: "[]"}},
		{"broken json", map[string]string{VersionKey: "v1", PayloadKey: "[{"}},
		{"not an array", map[string]string{VersionKey: "v1", PayloadKey: `{"a":1}`}},
		{"malformed record", map[string]string{VersionKey: "v1", PayloadKey: `[{"latitude":100,"longitude":1,"postcode":"1"}]`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kv := NewMemKV()
			for k, v := range tc.seed {
				require.NoError(t, kv.Set(ctx, k, v))
			}
			_, st, err := New(kv).Read(ctx)
			assert.Nil(t, st)
			assert.True(t, errors.Is(err, ErrCacheMiss), "got %v", err)
		})
	}
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func (brokenKV) Set(context.Context, string, string) error { return errors.New("disk on fire") }

func TestStorageErrorsBecomeMiss(t *testing.T) {
	c := New(brokenKV{})
	_, _, err := c.Read(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, c.Write(context.Background(), "v1", testStore(t)))
}

func TestWriteRejectsEmptyVersion(t *testing.T) {
	assert.Error(t, New(NewMemKV()).Write(context.Background(), "", testStore(t)))
}

func TestInspect(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemKV())
	require.NoError(t, c.Write(ctx, "v9", testStore(t)))
	b, err := Encode(testStore(t))
	require.NoError(t, err)
	v, n, err := c.Inspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v9", v)
	assert.Equal(t, len(b), n)
}

func BenchmarkReadParse(b *testing.B) {
	raw := make([]payphone.RawRecord, 15000)
	for i := range raw {
		raw[i] = payphone.RawRecord{"latitude": -30 + float64(i%1000)/100, "longitude": 140 + float64(i%700)/100, "postcode": "2000", "address": "Somewhere Rd"}
	}
	st, _ := payphone.Load(raw)
	c := New(NewMemKV())
	_ = c.Write(context.Background(), "bench", st)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = c.Read(context.Background())
	}
}
