package routes

import (
	"github.com/Udit004/alumni-networking-sub003/src/connections"
	"github.com/Udit004/alumni-networking-sub003/src/controllers"
	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/middleware"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"github.com/Udit004/alumni-networking-sub003/src/recommend"
	"github.com/gofiber/fiber/v2"
)

// Services are the domain components the API exposes
type Services struct {
	Users         graph.Store
	Connections   *connections.Machine
	Notifications *notifications.Log
	Recommender   *recommend.Recommender
}

// Setup registers every route group on app
func Setup(app *fiber.App, jwtSecret string, s Services) {
	protect := middleware.ProtectRoute(jwtSecret, s.Users)

	HealthRoutes(app)
	ConnectionRoutes(app, protect, controllers.NewConnectionController(s.Connections))
	UserRoutes(app, protect, controllers.NewUserController(s.Recommender))
	NotificationRoutes(app, protect, controllers.NewNotificationController(s.Notifications, s.Users))
}
