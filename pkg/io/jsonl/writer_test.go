package jsonl

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	streamio "github.com/edgestat/streamwatch/pkg/io"
)

func readRecords(t *testing.T, path string) []streamio.Record {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []streamio.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec streamio.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestWriteOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)

	records := []streamio.Record{
		{GlobalIndex: 104, Value: 5.32, ZScore: 3.41},
		{GlobalIndex: 230, Value: -4.87, ZScore: -3.9},
	}
	for _, rec := range records {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, records, readRecords(t, path))
}

func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(streamio.Record{GlobalIndex: 1, Value: 9, ZScore: 3.2}))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(streamio.Record{GlobalIndex: 2, Value: -9, ZScore: -3.2}))
	require.NoError(t, w.Close())

	recs := readRecords(t, path)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(1), recs[0].GlobalIndex)
	assert.Equal(t, uint64(2), recs[1].GlobalIndex)
}
