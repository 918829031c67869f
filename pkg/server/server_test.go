package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgestat/streamwatch/pkg/detectors"
	"github.com/edgestat/streamwatch/pkg/detectors/zscore"
	streamio "github.com/edgestat/streamwatch/pkg/io"
)

type memorySink struct {
	mu      sync.Mutex
	records []streamio.Record
}

func (m *memorySink) Write(rec streamio.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) snapshot() []streamio.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]streamio.Record(nil), m.records...)
}

func newTestServer(t *testing.T) (*Server, *memorySink, *httptest.Server) {
	t.Helper()

	det, err := zscore.New(zscore.WithCapacity(5), zscore.WithThreshold(1.5))
	require.NoError(t, err)

	sink := &memorySink{}
	srv := New(det, WithSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	return srv, sink, ts
}

func postValue(t *testing.T, url string, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/ingest", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestIngestAndAnalytics(t *testing.T) {
	srv, sink, ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		resp := postValue(t, ts.URL, `{"value": 0}`)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	resp := postValue(t, ts.URL, `{"value": 10}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond, "spike should reach the sink")

	rec := sink.snapshot()[0]
	assert.Equal(t, uint64(5), rec.GlobalIndex)
	assert.Equal(t, 10.0, rec.Value)
	assert.InDelta(t, 2.0, rec.ZScore, 1e-12)

	httpResp, err := http.Get(ts.URL + "/analytics")
	require.NoError(t, err)
	defer httpResp.Body.Close()

	var eval detectors.Evaluation
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&eval))
	assert.InDelta(t, 2.0, eval.Mean, 1e-12)
	assert.InDelta(t, 4.0, eval.StdDev, 1e-12)
	assert.Equal(t, 5, eval.WindowLen)

	assert.InDelta(t, 2.0, srv.Latest().Mean, 1e-12)
}

func TestIngestExplicitArrivalOrder(t *testing.T) {
	_, sink, ts := newTestServer(t)

	for i := 0; i < 5; i++ {
		postValue(t, ts.URL, `{"value": 0}`)
	}
	postValue(t, ts.URL, `{"value": 10, "arrival_order": 900}`)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, uint64(900), sink.snapshot()[0].GlobalIndex)
}

func TestIngestRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"value": `},
		{name: "unknown field", body: `{"value": 1, "extra": true}`},
		{name: "non-numeric value", body: `{"value": "NaN"}`},
	}

	_, _, ts := newTestServer(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postValue(t, ts.URL, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/ingest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
