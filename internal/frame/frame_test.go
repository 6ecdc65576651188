package frame

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/vnmarket/internal/contracts"
)

func TestAppendColumnMismatch(t *testing.T) {
	f := New("symbol", "close")
	require.NoError(t, f.Append("FPT", 95.5))
	assert.Error(t, f.Append("FPT"))
	assert.Equal(t, 1, f.Len())
}

func TestFromMapsFlattensAndOrdersColumns(t *testing.T) {
	f := FromMaps([]map[string]interface{}{
		{"symbol": "VCB", "board": "HSX", "ratio": map[string]interface{}{"pe": json.Number("15.2")}},
		{"symbol": "SHB", "extra": true},
	})

	assert.Equal(t, []string{"board", "ratio_pe", "symbol", "extra"}, f.Columns)
	require.Equal(t, 2, f.Len())
	assert.Nil(t, f.Rows[1][f.Column("board")], "missing keys become nil")
	assert.Equal(t, true, f.Rows[1][f.Column("extra")])
}

func TestParseTimeAndRecords(t *testing.T) {
	f := New("yearReport", "publicDate", "bsa1", "note")
	require.NoError(t, f.Append(json.Number("2023"), "2024-03-30T00:00:00", json.Number("1839613000000"), "audited"))
	require.NoError(t, f.Append(json.Number("2022"), "not a date", nil, "audited"))

	f.ParseTime("publicDate", "2006-01-02T15:04:05", contracts.DateLayout)
	_, isTime := f.Rows[0][1].(time.Time)
	assert.True(t, isTime)
	assert.Equal(t, "not a date", f.Rows[1][1])

	records := f.Records(CoerceAll)
	require.Len(t, records, 2)

	assert.Equal(t, float64(2023), records[0]["yearReport"])
	assert.Equal(t, "2024-03-30 00:00:00", records[0]["publicDate"])
	assert.Equal(t, 1839613000000.0, records[0]["bsa1"])
	assert.Equal(t, "audited", records[0]["note"])
	assert.Nil(t, records[1]["bsa1"])
}

func TestRecordsNumericOnlyKeepsTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, contracts.Location)
	f := New("listed", "price")
	require.NoError(t, f.Append(ts, int64(25300)))

	records := f.Records(NumericOnly)
	assert.Equal(t, ts, records[0]["listed"])
	assert.Equal(t, 25300.0, records[0]["price"])
}

func TestRecordsEmptyMarshalsAsArray(t *testing.T) {
	data, err := json.Marshal(New("a").Records(CoerceAll))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestCoerce(t *testing.T) {
	ts := time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC)
	var nilTime *time.Time

	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"int", 7, 7.0},
		{"int64", int64(7), 7.0},
		{"uint32", uint32(7), 7.0},
		{"float32", float32(1.5), 1.5},
		{"json number", json.Number("12.25"), 12.25},
		{"bad json number", json.Number("1e999"), "1e999"},
		{"time", ts, "2024-01-02 09:00:00"},
		{"time pointer", &ts, "2024-01-02 09:00:00"},
		{"nil time pointer", nilTime, nil},
		{"string", "HOSE", "HOSE"},
		{"bool", true, true},
		{"nil", nil, nil},
		{"slice", []interface{}{json.Number("1"), "x"}, []interface{}{1.0, "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.input, CoerceAll))
		})
	}
}

func TestRenameAndMapStrings(t *testing.T) {
	f := New("isa1", "ticker")
	require.NoError(t, f.Append(json.Number("10"), "<b>FPT</b>"))

	f.Rename(map[string]string{"isa1": "Revenue", "isa2": "unused"})
	f.MapStrings(func(s string) string { return s + "!" })

	assert.Equal(t, []string{"Revenue", "ticker"}, f.Columns)
	assert.Equal(t, "<b>FPT</b>!", f.Rows[0][1])
}

func TestRenameKeepsCollidingColumnsApart(t *testing.T) {
	f := New("isa11", "isa12", "Profit", "isa20")
	require.NoError(t, f.Append(json.Number("1"), json.Number("2"), json.Number("3"), json.Number("4")))

	f.Rename(map[string]string{
		"isa11": "Other income",
		"isa12": "Other income",
		"isa20": "Profit",
	})

	assert.Equal(t, []string{"Other income (isa11)", "Other income (isa12)", "Profit", "Profit (isa20)"}, f.Columns)

	records := f.Records(CoerceAll)
	require.Len(t, records, 1)
	assert.Len(t, records[0], 4, "no value is overwritten")
	assert.Equal(t, 2.0, records[0]["Other income (isa12)"])
	assert.Equal(t, 3.0, records[0]["Profit"])
}
