package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayarullin/finvizor/internal/scheduler"
	"github.com/ayarullin/finvizor/pkg/logger"
)

type stubScheduler struct {
	stats map[string]scheduler.JobStats
	ran   []string
}

func (s *stubScheduler) Stats() map[string]scheduler.JobStats { return s.stats }

func (s *stubScheduler) RunJob(name string) error {
	if _, ok := s.stats[name]; !ok {
		return fmt.Errorf("job %s not found", name)
	}
	s.ran = append(s.ran, name)
	return nil
}

func newTestJobsHandler(sched *stubScheduler) *JobsHandler {
	return NewJobsHandler(sched, logger.NewWriter(io.Discard))
}

func TestGetStats(t *testing.T) {
	h := newTestJobsHandler(&stubScheduler{stats: map[string]scheduler.JobStats{
		"advisor_cycle": {JobName: "advisor_cycle", TotalRuns: 3, SuccessCount: 2, FailureCount: 1},
	}})

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]scheduler.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp["advisor_cycle"].TotalRuns)
}

func TestRunJob(t *testing.T) {
	sched := &stubScheduler{stats: map[string]scheduler.JobStats{
		"advisor_cycle": {JobName: "advisor_cycle"},
	}}
	h := newTestJobsHandler(sched)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/advisor_cycle/run", nil),
		map[string]string{"name": "advisor_cycle"})
	rec := httptest.NewRecorder()
	h.RunJob(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"advisor_cycle"}, sched.ran)
}

func TestRunJob_Unknown(t *testing.T) {
	h := newTestJobsHandler(&stubScheduler{})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/api/v1/jobs/missing/run", nil),
		map[string]string{"name": "missing"})
	rec := httptest.NewRecorder()
	h.RunJob(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
