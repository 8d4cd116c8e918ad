package handlers

import (
	"errors"
	"net/http"

	"lexdesk/internal/common"
	"lexdesk/internal/jobs/background"

	"github.com/labstack/echo/v4"
)

// JobController is the part of the scheduler exposed to admins
type JobController interface {
	RunNow(name string) error
	GetJobStatus() []background.JobStatus
}

type JobHandlers struct {
	scheduler JobController
}

func NewJobHandlers(scheduler JobController) *JobHandlers {
	return &JobHandlers{scheduler: scheduler}
}

// ListJobs handles GET /v1/admin/jobs
func (h *JobHandlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.GetJobStatus(),
	})
}

// RunJob handles POST /v1/admin/jobs/:name/run. The job runs asynchronously
// on the scheduler.
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")

	if err := h.scheduler.RunNow(name); err != nil {
		if errors.Is(err, background.ErrUnknownJob) {
			return common.SendNotFoundError(c, "Job "+name)
		}
		return respondError(c, err, "Job")
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Job triggered",
		"job":     name,
	})
}
