package strategy

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/crmforge/dedupe/internal/repositories/strategy"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/utils"
)

// Register registers deduplication strategy routes
func Register(g *echo.Group) {
	g.GET("", ListStrategies)
	g.GET("/default", GetDefaultStrategy)
	g.GET("/:id", GetStrategy)
	g.POST("", CreateStrategy)
	g.DELETE("/:id", DeleteStrategy)
}

// ListStrategies lists all deduplication strategies
func ListStrategies(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	strategies, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, strategies)
}

// GetDefaultStrategy resolves the default strategy for a record type
func GetDefaultStrategy(c echo.Context) error {
	ctx := c.Request().Context()

	recordType := c.QueryParam("record_type")
	if recordType == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "record_type query parameter is required")
	}

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	strat, err := repo.DefaultForType(ctx, models.RecordType(recordType))
	if err != nil {
		if errors.Is(err, models.ErrStrategyNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "no default strategy for record type")
		}
		return err
	}

	return c.JSON(http.StatusOK, strat)
}

// GetStrategy gets a strategy by ID
func GetStrategy(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	strat, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrStrategyNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
		}
		return err
	}

	return c.JSON(http.StatusOK, strat)
}

// CreateStrategy creates a new deduplication strategy
func CreateStrategy(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateStrategyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, req)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{"id": created.ID}).Info("Created deduplication strategy")
	}

	return c.JSON(http.StatusCreated, created)
}

// DeleteStrategy deletes a strategy
func DeleteStrategy(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*strategy.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrStrategyNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, "strategy not found")
		}
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
