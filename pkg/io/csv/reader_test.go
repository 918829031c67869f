package csv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRead(t *testing.T) {
	path := writeTempCSV(t, "ts,value\n1,10.5\n2,11.0\n3,9.75\n")

	r, err := NewReader(path, WithColumn(1))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"ts", "value"}, r.Headers())

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, uint64(0), samples[0].ArrivalOrder)
	assert.Equal(t, 10.5, samples[0].Value)
	assert.Equal(t, uint64(2), samples[2].ArrivalOrder)
	assert.Equal(t, 9.75, samples[2].Value)
}

func TestReadNoHeader(t *testing.T) {
	path := writeTempCSV(t, "1.5\n2.5\n")

	r, err := NewReader(path, WithHeader(false))
	require.NoError(t, err)
	defer r.Close()

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1.5, samples[0].Value)
	assert.Nil(t, r.Headers())
}

func TestMalformedRowsKeepArrivalOrder(t *testing.T) {
	path := writeTempCSV(t, "value\n1.0\nnot-a-number\n3.0\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// The bad row is skipped but its slot in the order is preserved.
	assert.Equal(t, uint64(0), samples[0].ArrivalOrder)
	assert.Equal(t, uint64(2), samples[1].ArrivalOrder)
	assert.Equal(t, 3.0, samples[1].Value)
}

func TestStream(t *testing.T) {
	path := writeTempCSV(t, "value\n1\n2\n3\n4\n")

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	var values []float64
	for s := range ch {
		values = append(values, s.Value)
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, values)
}

func TestNewReaderErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewReader(filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})

	t.Run("negative column", func(t *testing.T) {
		path := writeTempCSV(t, "value\n1\n")
		_, err := NewReader(path, WithColumn(-1))
		assert.Error(t, err)
	})
}
