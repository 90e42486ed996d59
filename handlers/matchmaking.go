package handlers

import (
	"ranked-match-system/middleware"
	"ranked-match-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchmakingRoutes(app *fiber.App, ms *services.MatchmakingService) {
	// 🔓 Public
	app.Get("/queue/size", ms.QueueSize)

	// 🔐 Authenticated routes — identity comes from the gateway headers
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Ranked queue
	secured.Post("/queue/search", ms.StartSearch)
	secured.Delete("/queue/search", ms.CancelSearch)
	secured.Get("/queue/search", ms.SearchStatus)

	// Match + winner handshake
	secured.Get("/matches/:match_id", ms.GetMatch)
	secured.Post("/matches/:match_id/winner/select", ms.SelectWinner)
	secured.Post("/matches/:match_id/winner/confirm", ms.ConfirmWinner)
	secured.Get("/matches/:match_id/confirmation", ms.ConfirmationStatus)

	// Opponent display lookup (profile mirror, read-only)
	secured.Get("/profiles/:user_id", ms.GetProfile)
}
