package engine

import (
	"github.com/labstack/echo/v4"

	batchjobroutes "github.com/crmforge/dedupe/pkg/routes/batchjob"
	duplicateroutes "github.com/crmforge/dedupe/pkg/routes/duplicate"
	"github.com/crmforge/dedupe/pkg/routes/health"
	matchingruleroutes "github.com/crmforge/dedupe/pkg/routes/matchingrule"
	strategyroutes "github.com/crmforge/dedupe/pkg/routes/strategy"
	workflowroutes "github.com/crmforge/dedupe/pkg/routes/workflow"
)

// RegisterRoutes mounts the API route groups on an echo server. Handlers
// resolve their dependencies from the DI container the host attaches to each
// request context.
func (e *Engine) RegisterRoutes(srv *echo.Echo, version string) *health.Checker {
	api := srv.Group("/api/v1")

	matchingruleroutes.Register(api.Group("/matching-rules"))
	strategyroutes.Register(api.Group("/strategies"))
	duplicateroutes.Register(api.Group("/duplicates"))
	workflowroutes.Register(api.Group("/workflows"))
	batchjobroutes.Register(api.Group("/jobs"))

	checker := health.NewChecker(e.Store, e.Monitor, version)
	checker.RegisterRoutes(srv)
	return checker
}
