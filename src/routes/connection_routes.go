package routes

import (
	"github.com/Udit004/alumni-networking-sub003/src/controllers"
	"github.com/gofiber/fiber/v2"
)

// ConnectionRoutes sets up connection-related routes for sending, accepting, declining and withdrawing requests, listing requests and connections, removing connections, and checking connection status
func ConnectionRoutes(app *fiber.App, protect fiber.Handler, cc *controllers.ConnectionController) {
	connection := app.Group("/api/connections", protect)

	connection.Post("/request/:userId", cc.SendConnectionRequest)
	connection.Delete("/request/:userId", cc.WithdrawConnectionRequest)
	connection.Put("/accept/:userId", cc.AcceptConnectionRequest)
	connection.Put("/decline/:userId", cc.DeclineConnectionRequest)
	connection.Get("/requests", cc.GetConnectionRequests)
	connection.Get("/status/:userId", cc.GetConnectionStatus)
	connection.Get("/", cc.GetUserConnections)
	connection.Delete("/:userId", cc.RemoveConnection)
}
