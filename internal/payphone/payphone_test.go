package payphone

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sydney() []RawRecord {
	return []RawRecord{
		{"id": 1, "latitude": -33.8688, "longitude": 151.2093, "postcode": "2000", "address": "George St"},
		{"id": 2, "latitude": -33.88, "longitude": 151.21, "postcode": "2000"},
		{"id": 3, "latitude": -34.0, "longitude": 151.0, "postcode": "2010"},
	}
}

func TestLoad(t *testing.T) {
	st, err := Load(sydney())
	require.NoError(t, err)
	require.Equal(t, 3, st.Len())

	r := st.At(0)
	assert.Equal(t, 1, r.ID)
	assert.Equal(t, -33.8688, r.Latitude)
	assert.Equal(t, 151.2093, r.Longitude)
	assert.Equal(t, "2000", r.Postcode)
	assert.Equal(t, "George St", r.PayloadString("address"))
	assert.Nil(t, st.At(1).Payload)
}

func TestPayloadNumbersMatchJSONDecoding(t *testing.T) {
	r, err := ParseRecord(RawRecord{
		"latitude": -33.8688, "longitude": 151.2093, "postcode": "2000",
		"cabinet_id": 42, "weight": float32(1.5), "code": json.Number("7"),
		"lines": []any{int64(1)}, "meta": map[string]any{"floor": uint16(3)}, "state": "NSW",
	}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 42.0, r.Payload["cabinet_id"])
	assert.Equal(t, 1.5, r.Payload["weight"])
	assert.Equal(t, 7.0, r.Payload["code"])
	assert.Equal(t, []any{1.0}, r.Payload["lines"])
	assert.Equal(t, map[string]any{"floor": 3.0}, r.Payload["meta"])
	assert.Equal(t, "NSW", r.Payload["state"])
}

func TestLoadAssignsPositionalIDs(t *testing.T) {
	st, err := Load([]RawRecord{
		{"latitude": "-33.5", "longitude": "150.1", "postcode": "2780"},
		{"latitude": -33.6, "longitude": json.Number("150.2"), "postcode": "2780"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, st.At(0).ID)
	assert.Equal(t, 2, st.At(1).ID)
	assert.Equal(t, -33.5, st.At(0).Latitude)
	assert.Equal(t, 150.2, st.At(1).Longitude)
}

func TestLoadRejectsMalformedRows(t *testing.T) {
	cases := []struct {
		name  string
		row   RawRecord
		field string
	}{
		{"missing latitude", RawRecord{"longitude": 1.0, "postcode": "1"}, FieldLatitude},
		{"nil longitude", RawRecord{"latitude": 1.0, "longitude": nil, "postcode": "1"}, FieldLongitude},
		{"latitude out of range", RawRecord{"latitude": 91.0, "longitude": 1.0, "postcode": "1"}, FieldLatitude},
		{"longitude out of range", RawRecord{"latitude": 1.0, "longitude": -180.01, "postcode": "1"}, FieldLongitude},
		{"latitude NaN", RawRecord{"latitude": math.NaN(), "longitude": 1.0, "postcode": "1"}, FieldLatitude},
		{"latitude not numeric", RawRecord{"latitude": "north", "longitude": 1.0, "postcode": "1"}, FieldLatitude},
		{"postcode number", RawRecord{"latitude": 1.0, "longitude": 1.0, "postcode": 2000.0}, FieldPostcode},
		{"postcode missing", RawRecord{"latitude": 1.0, "longitude": 1.0}, FieldPostcode},
		{"fractional id", RawRecord{"id": 1.5, "latitude": 1.0, "longitude": 1.0, "postcode": "1"}, FieldID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := append(sydney(), tc.row)
			st, err := Load(rows)
			assert.Nil(t, st)
			var me *MalformedRecordError
			require.True(t, errors.As(err, &me), "got %v", err)
			assert.Equal(t, 3, me.Index)
			assert.Equal(t, tc.field, me.Field)
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	st, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Len())
}

func TestRecordJSONIsFlatAndOrdered(t *testing.T) {
	r := Record{ID: 7, Latitude: -33.1, Longitude: 151.5, Postcode: "2000", Payload: map[string]any{"state": "NSW", "address": "1 Main Rd"}}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"id":7,"latitude":-33.1,"longitude":151.5,"postcode":"2000","address":"1 Main Rd","state":"NSW"}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
}

func TestRecordsReturnsCopy(t *testing.T) {
	st, err := Load(sydney())
	require.NoError(t, err)
	recs := st.Records()
	recs[0].Postcode = "9999"
	assert.Equal(t, "2000", st.At(0).Postcode)
}
