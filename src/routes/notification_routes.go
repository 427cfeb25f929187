package routes

import (
	"github.com/Udit004/alumni-networking-sub003/src/controllers"
	"github.com/gofiber/fiber/v2"
)

// NotificationRoutes sets up notification-related routes for listing, counting, marking as read, deleting and broadcasting
func NotificationRoutes(app *fiber.App, protect fiber.Handler, nc *controllers.NotificationController) {
	notification := app.Group("/api/notifications", protect)

	notification.Get("/", nc.GetUserNotifications)
	notification.Get("/unread-count", nc.GetUnreadCount)
	notification.Put("/read-all", nc.MarkAllNotificationsAsRead)
	notification.Put("/:id/read", nc.MarkNotificationAsRead)
	notification.Delete("/:id", nc.DeleteNotification)
	notification.Post("/broadcast", nc.BroadcastToRole)
}

// HealthRoutes exposes the liveness probe
func HealthRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
}
