package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ayarullin/finvizor/internal/scheduler"
	"github.com/ayarullin/finvizor/pkg/logger"
)

// JobScheduler exposes the scheduler's job surface to the API
type JobScheduler interface {
	Stats() map[string]scheduler.JobStats
	RunJob(name string) error
}

// JobsHandler serves scheduler state and manual job triggers
type JobsHandler struct {
	sched  JobScheduler
	logger *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(sched JobScheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{sched: sched, logger: log}
}

// GetStats returns execution statistics for every registered job
// GET /api/v1/jobs
func (h *JobsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sched.Stats())
}

// RunJob triggers a registered job immediately
// POST /api/v1/jobs/{name}/run
func (h *JobsHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := h.sched.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered manually")

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "started",
	})
}
