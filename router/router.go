package router

import (
	"github.com/signalclub/roi-api/handler"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	api := app.Group("/v1")
	api.Get("/", handler.Ping)

	// Dashboard reads
	dashboard := api.Group("/dashboard")
	dashboard.Get("/", handler.GetDashboard)
	dashboard.Get("/:key", handler.GetPortfolioDashboard)

	// Per-portfolio operations
	portfolio := api.Group("/portfolio")
	portfolio.Post("/:key/backfill", handler.Backfill)
	portfolio.Get("/:key/diagnostics", handler.GetPortfolioDiagnostics)

	// Benchmark series uploads
	api.Post("/benchmark/:ticker/import", handler.ImportBenchmark)

	// Event ingestion
	events := api.Group("/events")
	events.Post("/signal", handler.PostSignal)
	events.Post("/prices", handler.PostPrices)
	events.Post("/settings", handler.PostSettingsChanged)

	// Admin operations
	admin := api.Group("/admin")
	admin.Post("/sweep", handler.Sweep)
	admin.Get("/diagnostics", handler.Diagnostics)
}
