package matchingrule

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/crmforge/dedupe/internal/repositories/matchingrule"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/utils"
)

// Register registers matching rule routes
func Register(g *echo.Group) {
	g.GET("", ListMatchingRules)
	g.GET("/:id", GetMatchingRule)
	g.POST("", CreateMatchingRule)
	g.PUT("/:id", UpdateMatchingRule)
	g.DELETE("/:id", DeleteMatchingRule)
}

// ListMatchingRules lists matching rules, optionally only active rules for a
// record type
func ListMatchingRules(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*matchingrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if recordType := c.QueryParam("record_type"); recordType != "" {
		rules, err := repo.ListActiveByRecordType(ctx, models.RecordType(recordType))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, rules)
	}

	rules, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rules)
}

// GetMatchingRule gets a matching rule by ID
func GetMatchingRule(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*matchingrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "matching rule not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, rule)
}

// CreateMatchingRule creates a new matching rule
func CreateMatchingRule(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateMatchingRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*matchingrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, req)
	if err != nil {
		return err
	}

	ctx, emitter, _ := ectoinject.GetContext[*events.Emitter](ctx)
	if emitter != nil {
		emitter.EmitRuleUpdated(ctx, created)
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{"id": created.ID}).Info("Created matching rule")
	}

	return c.JSON(http.StatusCreated, created)
}

// UpdateMatchingRule updates a matching rule
func UpdateMatchingRule(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req models.UpdateMatchingRuleRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, repo, err := ectoinject.GetContext[*matchingrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	updated, err := repo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "matching rule not found")
		}
		return err
	}

	ctx, emitter, _ := ectoinject.GetContext[*events.Emitter](ctx)
	if emitter != nil {
		emitter.EmitRuleUpdated(ctx, updated)
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteMatchingRule deletes a matching rule
func DeleteMatchingRule(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*matchingrule.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rule, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "matching rule not found")
		}
		return err
	}

	if err := repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "matching rule not found")
		}
		return err
	}

	ctx, emitter, _ := ectoinject.GetContext[*events.Emitter](ctx)
	if emitter != nil {
		emitter.EmitRuleUpdated(ctx, rule)
	}

	return c.NoContent(http.StatusNoContent)
}
