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

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/metrics"
	"clusterdash/pkg/models"
	"clusterdash/pkg/reader"
	"clusterdash/pkg/render"

	"github.com/stretchr/testify/suite"
)

// MockReader implements dispatcher.SnapshotReader for testing
type MockReader struct {
	mu     sync.Mutex
	result *reader.Result
	err    error
}

func (m *MockReader) ReadLatest(context.Context) (*reader.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.err
}

func (m *MockReader) set(result *reader.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	m.err = err
}

func exampleResult(id int64) *reader.Result {
	return &reader.Result{
		SnapshotID: id,
		SnapshotAt: time.Now().Add(-time.Minute),
		Pairs: map[models.ClusterName]models.UtilizationPair{
			models.ClusterSMP: {Used: 3, Free: 7},
			models.ClusterGPU: {Used: 0, Free: 5},
			models.ClusterMPI: {Used: 5, Free: 0},
			models.ClusterHTC: {Used: 0, Free: 0},
		},
	}
}

// ServerTestSuite tests the dashboard HTTP surface
type ServerTestSuite struct {
	suite.Suite
	reader     *MockReader
	dispatcher *dispatcher.Dispatcher
	reporter   *metrics.Reporter
	server     *DashboardServer
}

func (s *ServerTestSuite) SetupTest() {
	s.reader = &MockReader{}
	s.reporter = metrics.NewReporter()

	renderers := make([]dispatcher.Renderer, 0, 4)
	for _, a := range render.DefaultAdapters() {
		renderers = append(renderers, a)
	}
	s.dispatcher = dispatcher.New(s.reader, renderers, 5*time.Minute, s.reporter)

	var err error
	s.server, err = NewDashboardServer(s.dispatcher, s.reporter.Handler(), "test-secret", "1.2.3")
	s.Require().NoError(err)
}

func (s *ServerTestSuite) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) loadExample() {
	s.reader.set(exampleResult(1), nil)
	s.Require().NoError(s.dispatcher.Refresh(context.Background()))
}

// TestPageRendersFourCharts tests the full page layout
func (s *ServerTestSuite) TestPageRendersFourCharts() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	for _, id := range []string{"smp-graph", "gpu-graph", "mpi-graph", "htc-graph"} {
		s.Contains(body, `id="`+id+`"`)
	}
	s.Contains(body, ">SMP</text>")
	s.Contains(body, render.ColorUsed)
	s.Contains(body, render.ColorFree)
	s.Contains(body, "300000")
	s.Contains(body, "Updated ")
	s.NotEmpty(rec.Header().Get("X-Request-Id"))
}

// TestPageBeforeFirstSnapshot tests that the page renders placeholders without data
func (s *ServerTestSuite) TestPageBeforeFirstSnapshot() {
	rec := s.do(http.MethodGet, "/", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "GPU: no data")
	s.Contains(rec.Body.String(), "Waiting for data")
}

// TestChartsFragment tests the fragment fetched by the page script
func (s *ServerTestSuite) TestChartsFragment() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/charts", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotContains(rec.Body.String(), "<html")
	s.Contains(rec.Body.String(), `id="htc-graph"`)
	s.Contains(rec.Body.String(), "SMP: 3 used, 7 free (30%)")
	s.Equal("no-store", rec.Header().Get("Cache-Control"))
}

// TestChartsFragmentMarksStaleData tests the stale indicator after a failed refresh
func (s *ServerTestSuite) TestChartsFragmentMarksStaleData() {
	s.loadExample()
	s.reader.set(nil, reader.ErrDataUnavailable)
	s.Error(s.dispatcher.Refresh(context.Background()))

	rec := s.do(http.MethodGet, "/charts", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "updated stale")
	s.Contains(rec.Body.String(), "SMP: 3 used, 7 free")
}

// TestAPICharts tests the JSON chart listing
func (s *ServerTestSuite) TestAPICharts() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/api/charts", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp chartsResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(int64(1), resp.SnapshotID)
	s.Require().Len(resp.Charts, 4)
	s.Equal(models.ClusterSMP, resp.Charts[0].Cluster)
	s.Equal("Used", resp.Charts[0].Segments[0].Label)
	s.Equal(int64(3), resp.Charts[0].Segments[0].Value)
	s.Equal(int64(7), resp.Charts[0].Segments[1].Value)
	s.InDelta(0.65, resp.Charts[0].Hole, 1e-9)
	s.NotEmpty(rec.Header().Get("ETag"))
}

// TestAPIChartsNotModified tests conditional requests
func (s *ServerTestSuite) TestAPIChartsNotModified() {
	s.loadExample()

	first := s.do(http.MethodGet, "/api/charts", nil)
	tag := first.Header().Get("ETag")
	s.Require().NotEmpty(tag)
	s.NotEqual(`"1"`, tag, "etag must not be the raw snapshot id")

	second := s.do(http.MethodGet, "/api/charts", map[string]string{"If-None-Match": tag})
	s.Equal(http.StatusNotModified, second.Code)

	s.reader.set(exampleResult(2), nil)
	s.Require().NoError(s.dispatcher.Refresh(context.Background()))

	third := s.do(http.MethodGet, "/api/charts", map[string]string{"If-None-Match": tag})
	s.Equal(http.StatusOK, third.Code)
	s.NotEqual(tag, third.Header().Get("ETag"))
}

// TestAPIChartsNoSnapshot tests the API before the first successful read
func (s *ServerTestSuite) TestAPIChartsNoSnapshot() {
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/charts", nil).Code)
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/charts/smp", nil).Code)
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/state", nil).Code)
}

// TestAPIChart tests single chart lookup
func (s *ServerTestSuite) TestAPIChart() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/api/charts/MPI", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var chart models.ChartSpec
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &chart))
	s.Equal("MPI", chart.Title)
	s.Equal(int64(5), chart.Segments[0].Value)
	s.Equal(int64(0), chart.Segments[1].Value)

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/charts/tpu", nil).Code)
}

// TestAPIState tests the display state endpoint
func (s *ServerTestSuite) TestAPIState() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/api/state", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var state models.DisplayState
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &state))
	s.Equal(models.UtilizationPair{Used: 3, Free: 7}, state.Pairs[models.ClusterSMP])
	s.Equal(models.UtilizationPair{Used: 0, Free: 0}, state.Pairs[models.ClusterHTC])
}

// TestHealth tests health reporting across a failing refresh
func (s *ServerTestSuite) TestHealth() {
	s.Equal(http.StatusServiceUnavailable, s.do(http.MethodGet, "/healthz", nil).Code)

	s.loadExample()
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"version":"1.2.3"`)

	s.reader.set(nil, reader.ErrMalformedRecord)
	s.Error(s.dispatcher.Refresh(context.Background()))

	rec = s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(rec.Body.String(), "malformed status record")
}

// TestManualRefresh tests POST /api/refresh
func (s *ServerTestSuite) TestManualRefresh() {
	s.reader.set(exampleResult(4), nil)

	rec := s.do(http.MethodPost, "/api/refresh", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"snapshot_id":4}`, rec.Body.String())

	s.reader.set(nil, reader.ErrDataUnavailable)
	rec = s.do(http.MethodPost, "/api/refresh", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal(int64(4), s.dispatcher.Frame().State.SnapshotID)
}

// TestMetrics tests the Prometheus endpoint
func (s *ServerTestSuite) TestMetrics() {
	s.loadExample()

	rec := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, `clusterdash_refresh_total{result="success"} 1`)
	s.True(strings.Contains(body, `clusterdash_cluster_used{cluster="smp"} 3`))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
