package api

import (
	"time"

	"github.com/lysyi3m/job-poster/app/tasks"
)

// StatusProvider exposes the scheduler state shown by the status endpoints.
type StatusProvider interface {
	LastResults() []tasks.Result
	Runs() (int, time.Time)
	NextRun() time.Time
}

var _ StatusProvider = (*tasks.Scheduler)(nil)

type Handler struct {
	status    StatusProvider
	platforms []string
	schedule  string
	version   string
	startedAt time.Time
}
