package workflow

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	workflowrepo "github.com/crmforge/dedupe/internal/repositories/workflow"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/utils"
	"github.com/crmforge/dedupe/pkg/workflow"
)

// Register registers resolution workflow routes
func Register(g *echo.Group) {
	g.GET("", ListWorkflows)
	g.GET("/:id", GetWorkflow)
	g.POST("", CreateWorkflow)
	g.POST("/:id/advance", AdvanceWorkflow)
	g.POST("/:id/cancel", CancelWorkflow)
}

// ListWorkflows lists workflows matching the query filters
func ListWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, service, err := ectoinject.GetContext[*workflow.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	filter := workflowrepo.ListFilter{
		Status:   models.WorkflowStatus(c.QueryParam("status")),
		Assignee: c.QueryParam("assignee"),
	}

	workflows, err := service.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, workflows)
}

// GetWorkflow gets a workflow by ID
func GetWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, service, err := ectoinject.GetContext[*workflow.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	wf, err := service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrWorkflowNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "workflow not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, wf)
}

// CreateWorkflow starts a resolution workflow for a duplicate
func CreateWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*workflow.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := service.Create(ctx, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// AdvanceWorkflow applies a step result to the workflow's current step
func AdvanceWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var result models.StepResult
	if err := c.Bind(&result); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(result); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, service, err := ectoinject.GetContext[*workflow.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	wf, err := service.Advance(ctx, id, result)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWorkflowNotFound):
			return httperror.NewHTTPError(http.StatusNotFound, "workflow not found")
		case errors.Is(err, models.ErrWorkflowTerminal):
			return httperror.NewHTTPError(http.StatusConflict, "workflow already finished")
		}
		return err
	}

	return c.JSON(http.StatusOK, wf)
}

// CancelWorkflow cancels a non-terminal workflow
func CancelWorkflow(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, service, err := ectoinject.GetContext[*workflow.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	wf, err := service.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrWorkflowNotFound):
			return httperror.NewHTTPError(http.StatusNotFound, "workflow not found")
		case errors.Is(err, models.ErrWorkflowTerminal):
			return httperror.NewHTTPError(http.StatusConflict, "workflow already finished")
		}
		return err
	}

	return c.JSON(http.StatusOK, wf)
}
