package batchjob

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/crmforge/dedupe/pkg/batch"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/utils"
)

// Register registers batch detection job routes
func Register(g *echo.Group) {
	g.GET("", ListJobs)
	g.GET("/:id", GetJob)
	g.POST("", StartJob)
	g.POST("/:id/cancel", CancelJob)
}

// ListJobs lists all batch detection jobs
func ListJobs(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, orchestrator, err := ectoinject.GetContext[*batch.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	jobs, err := orchestrator.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jobs)
}

// GetJob gets a batch job by ID
func GetJob(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, orchestrator, err := ectoinject.GetContext[*batch.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	job, err := orchestrator.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "batch job not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, job)
}

// StartJob queues a new batch detection job
func StartJob(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.StartBatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, orchestrator, err := ectoinject.GetContext[*batch.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	job, err := orchestrator.Start(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, job)
}

// CancelJob requests cancellation of a queued or running job
func CancelJob(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, orchestrator, err := ectoinject.GetContext[*batch.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	job, err := orchestrator.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			return httperror.NewHTTPError(http.StatusNotFound, "batch job not found")
		case errors.Is(err, models.ErrJobTerminal):
			return httperror.NewHTTPError(http.StatusConflict, "batch job already finished")
		}
		return err
	}

	return c.JSON(http.StatusOK, job)
}
