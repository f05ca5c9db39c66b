package duplicate

import (
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cast"

	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/utils"
)

// Register registers duplicate record routes
func Register(g *echo.Group) {
	g.GET("", ListDuplicates)
	g.GET("/:id", GetDuplicate)
	g.PUT("/:id/review", ReviewDuplicate)
	g.POST("/:id/merge", MergeDuplicate)
}

// ListDuplicates lists duplicates matching the query filters
func ListDuplicates(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*duplicate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	filter := duplicate.ListFilter{
		Status:        models.DuplicateStatus(c.QueryParam("status")),
		RecordType:    models.RecordType(c.QueryParam("record_type")),
		SourceSystem:  c.QueryParam("source_system"),
		MinConfidence: cast.ToFloat64(c.QueryParam("min_confidence")),
	}

	duplicates, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, duplicates)
}

// GetDuplicate gets a duplicate by ID
func GetDuplicate(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*duplicate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dup, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "duplicate not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, dup)
}

// ReviewDuplicate records a manual review decision. Reviewing with a merged
// status performs the merge.
func ReviewDuplicate(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req models.ReviewDuplicateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*duplicate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	dup, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "duplicate not found")
		}
		return err
	}
	if dup.IsTerminal() {
		return httperror.NewHTTPError(http.StatusConflict, "duplicate already resolved")
	}

	if req.Status == models.DuplicateStatusMerged {
		ctx, merger, err := ectoinject.GetContext[*merging.Engine](ctx)
		if err != nil {
			return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
		}
		if _, err := merger.MergeDuplicate(ctx, id); err != nil {
			if errors.Is(err, models.ErrAlreadyMerged) {
				return httperror.NewHTTPError(http.StatusConflict, "duplicate already merged")
			}
			return err
		}
		dup, err = repo.Get(ctx, id)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	updated := *dup
	updated.Status = req.Status
	updated.ReviewedBy = &req.ReviewedBy
	updated.ReviewedAt = &now

	if err := repo.Update(ctx, &updated); err != nil {
		return err
	}

	ctx, emitter, _ := ectoinject.GetContext[*events.Emitter](ctx)
	if emitter != nil {
		emitter.EmitDuplicateReviewed(ctx, &updated)
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"id":     updated.ID,
			"status": updated.Status,
		}).Info("Reviewed duplicate")
	}

	return c.JSON(http.StatusOK, &updated)
}

// MergeDuplicate merges a pending duplicate immediately
func MergeDuplicate(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, merger, err := ectoinject.GetContext[*merging.Engine](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	receipt, err := merger.MergeDuplicate(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateNotFound):
			return httperror.NewHTTPError(http.StatusNotFound, "duplicate not found")
		case errors.Is(err, models.ErrAlreadyMerged):
			return httperror.NewHTTPError(http.StatusConflict, "duplicate already merged")
		case errors.Is(err, models.ErrStatusConflict):
			return httperror.NewHTTPError(http.StatusConflict, "duplicate is not pending")
		case errors.Is(err, models.ErrStrategyNotFound):
			return httperror.NewHTTPError(http.StatusBadRequest, "no merge strategy configured for record type")
		}
		return err
	}

	return c.JSON(http.StatusOK, receipt)
}
