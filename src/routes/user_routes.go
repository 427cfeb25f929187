package routes

import (
	"github.com/Udit004/alumni-networking-sub003/src/controllers"
	"github.com/gofiber/fiber/v2"
)

// UserRoutes sets up the profile and suggestion routes
func UserRoutes(app *fiber.App, protect fiber.Handler, uc *controllers.UserController) {
	user := app.Group("/api/users", protect)

	user.Get("/me", uc.GetCurrentUser)
	user.Get("/suggestions", uc.GetSuggestedConnections)
}
