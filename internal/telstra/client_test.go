package telstra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `{"results":[{"value":[{"featureList":[
  {"latitude":-33.8688,"longitude":151.2093,"address":"1 George St","state":"NSW","postcode":2000,
   "phone_attributes":{"accessible":true},"cabinet_id":"C1","fnn":"0290000000","cli":290000000,"type":"payphone","icon":"pp"},
  {"latitude":"-34.0","longitude":"151.0","address":"2 Kent St","state":"NSW","postcode":"2010",
   "phone_attributes":null,"cabinet_id":"C2","fnn":"","cli":"0290000001","type":"payphone","icon":"pp"},
  {"latitude":null,"longitude":151.0,"address":"nowhere","state":"NSW","postcode":"0000"}
]}]}]}`

func TestListPage(t *testing.T) {
	var got listRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "tcom", r.Header.Get("source"))
		assert.Equal(t, "https://www.telstra.com.au", r.Header.Get("Origin"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	list, err := c.ListPage(context.Background(), Point{Lat: -34.87, Lon: 147.58}, 200)
	require.NoError(t, err)

	assert.Equal(t, 200, got.Pagination.From)
	assert.Equal(t, PageSize, got.Pagination.Size)
	assert.Equal(t, int64(LargeRadius), got.Radius)
	assert.Equal(t, -34.87, got.Point.Lat)

	require.Len(t, list, 2, "feature without coordinates is skipped")
	assert.Equal(t, "2000", list[0].Postcode)
	assert.Equal(t, "290000000", list[0].CLI)
	assert.Equal(t, map[string]any{"accessible": true}, list[0].PhoneAttributes)
	assert.Equal(t, -34.0, list[1].Latitude)
	assert.Nil(t, list[1].PhoneAttributes)
}

func TestListPageEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()
	list, err := NewClient(srv.URL, nil).ListPage(context.Background(), Point{}, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListPageBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, nil).ListPage(context.Background(), Point{}, 0)
	assert.ErrorContains(t, err, "502")
}

func TestKeyDistinguishesCabinets(t *testing.T) {
	a := Payphone{Latitude: -33.1, Longitude: 151.1, Address: "x", CabinetID: "1"}
	b := a
	assert.Equal(t, a.Key(), b.Key())
	b.CabinetID = "2"
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestListPageRespectsLimiterContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, nil).WithQPS(0.001)
	_, err := c.ListPage(context.Background(), Point{}, 0)
	require.NoError(t, err, "first request uses the initial burst token")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.ListPage(ctx, Point{}, 100)
	assert.Error(t, err)
}
