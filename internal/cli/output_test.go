package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/resource"
)

func TestPrinterRecordTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	require.NoError(t, p.Record(resource.Record{
		"id":     "i-1",
		"name":   "primary",
		"volume": map[string]any{"size": float64(5)},
	}))

	// tablewriter uppercases headers.
	out := buf.String()
	assert.Contains(t, out, "PROPERTY")
	assert.Contains(t, out, "VALUE")
	assert.Contains(t, out, "primary")
	assert.Contains(t, out, `{"size":5}`)
}

func TestPrinterListUsesCoalescedID(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, false)

	require.NoError(t, p.List([]string{"id", "name"}, []resource.Record{
		{"id": float64(42), "name": "answer"},
	}))
	assert.Contains(t, buf.String(), "42")
	assert.Contains(t, buf.String(), "answer")
}

func TestPrinterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	require.NoError(t, p.List([]string{"id"}, []resource.Record{{"id": "i-1"}}))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "i-1", decoded[0]["id"])

	// Confirmation chatter would corrupt piped JSON.
	buf.Reset()
	p.Confirm("deleted %s", "i-1")
	assert.Empty(t, buf.String())
}

func TestPrinterRowsJSONKeysByColumn(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true)

	require.NoError(t, p.Rows([]string{"name", "state"}, [][]string{{"nightly", "Completed"}}))
	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Completed", decoded[0]["state"])
}

func TestCellValue(t *testing.T) {
	assert.Equal(t, "", cellValue(nil))
	assert.Equal(t, "true", cellValue(true))
	assert.Equal(t, "5", cellValue(float64(5)))
	assert.Equal(t, "2.5", cellValue(2.5))
	assert.Equal(t, `["a","b"]`, cellValue([]any{"a", "b"}))
}
