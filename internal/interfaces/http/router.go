package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/conteo-api/internal/application/recon"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	LoadUC      *recon.LoadUseCase
	Coordinator *recon.Coordinator
	JWTSecret   string
}

// Router registra las rutas de la API. Todo el núcleo requiere Bearer Token;
// el descarte de contenedor queda además restringido a supervisores.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	handler := NewReconHandler(deps.LoadUC, deps.Coordinator)

	containers := api.Group("/containers")
	containers.Post("/load", handler.Load)
	containers.Get("/:id/aggregates", handler.Aggregates)
	containers.Post("/:id/aggregates/:material/quantity", handler.EnterQuantity)
	containers.Post("/:id/commit", handler.Commit)
	containers.Post("/:id/discard", RequireRole("supervisor"), handler.Discard)

	lines := api.Group("/lines")
	lines.Post("/finalize", handler.Finalize)
}
