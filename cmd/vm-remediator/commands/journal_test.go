package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leonardo-meireles/vm-remediator/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var sampleEntries = []*db.Entry{
	{RunID: "r2", Signal: "request_timeout", Instance: "web-1", ObservedStatus: "STOPPED", Action: "start", Result: "ok", Success: true, CreatedAt: "2026-01-02 10:00:00"},
	{RunID: "r1", Signal: "not_responding", Action: "none", Result: "not_found", CreatedAt: "2026-01-01 10:00:00"},
}

func TestWriteEntriesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, sampleEntries, "table"))

	out := buf.String()
	assert.Contains(t, out, "INSTANCE")
	assert.Contains(t, out, "web-1")
	assert.Contains(t, out, "not_found")
	assert.Contains(t, out, "r1")
}

func TestWriteEntriesEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, nil, "table"))
	assert.Equal(t, "No remediation runs found\n", buf.String())
}

func TestWriteEntriesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, sampleEntries, "json"))

	var got []db.Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "web-1", got[0].Instance)

	buf.Reset()
	require.NoError(t, writeEntries(&buf, nil, "json"))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteEntriesYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEntries(&buf, sampleEntries, "yaml"))

	var got []db.Entry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "start", got[0].Action)
}

func TestWriteEntriesUnknownFormat(t *testing.T) {
	assert.Error(t, writeEntries(&bytes.Buffer{}, sampleEntries, "csv"))
}
