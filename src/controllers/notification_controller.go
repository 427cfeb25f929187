package controllers

import (
	"github.com/Udit004/alumni-networking-sub003/src/graph"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/middleware"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/Udit004/alumni-networking-sub003/src/notifications"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NotificationController serves the notification log
type NotificationController struct {
	log       *notifications.Log
	directory graph.Directory
}

func NewNotificationController(log *notifications.Log, directory graph.Directory) *NotificationController {
	return &NotificationController{log: log, directory: directory}
}

// GetUserNotifications returns the newest notifications of the authenticated user
func (nc *NotificationController) GetUserNotifications(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	recipient := c.Query("recipient", user.Id)
	if recipient != user.Id {
		return lib.ErrorResponse(c, lib.ErrNotRecipient)
	}
	limit := c.QueryInt("limit", notifications.DefaultLimit)

	list, err := nc.log.ListRecent(c.UserContext(), recipient, limit)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":       true,
		"notifications": list,
	})
}

// GetUnreadCount returns how many notifications are unread
func (nc *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	count, err := nc.log.UnreadCount(c.UserContext(), user.Id)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"count":   count,
	})
}

// MarkNotificationAsRead marks a notification as read for the authenticated user
func (nc *NotificationController) MarkNotificationAsRead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := nc.log.MarkReadFor(c.UserContext(), c.Params("id"), user.Id); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Notification marked as read",
	})
}

// MarkAllNotificationsAsRead marks every notification of the authenticated user as read
func (nc *NotificationController) MarkAllNotificationsAsRead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	updated, err := nc.log.MarkAllRead(c.UserContext(), user.Id)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// DeleteNotification removes one of the authenticated user's notifications
func (nc *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	id := c.Params("id")

	n, err := nc.log.Get(c.UserContext(), id)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	if n.Recipient != user.Id {
		return lib.ErrorResponse(c, lib.ErrNotRecipient)
	}
	if err := nc.log.Delete(c.UserContext(), id); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Notification deleted",
	})
}

type broadcastRequest struct {
	Role    models.Role             `json:"role"`
	Type    models.NotificationType `json:"type"`
	Message string                  `json:"message"`
}

// BroadcastToRole sends one notification to every user with the given role.
// Students cannot broadcast.
func (nc *NotificationController) BroadcastToRole(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user.Role == models.RoleStudent {
		return lib.ErrorResponse(c, lib.NewBaseError(lib.KindForbidden, "students cannot broadcast", nil))
	}

	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return lib.ErrorResponse(c, lib.NewBaseError(lib.KindValidation, "invalid request body", err))
	}
	if !req.Role.Valid() {
		return lib.ErrorResponse(c, lib.NewBaseError(lib.KindValidation, "unknown role", nil))
	}
	if req.Message == "" {
		return lib.ErrorResponse(c, lib.NewBaseError(lib.KindValidation, "message is required", nil))
	}
	if req.Type == "" {
		req.Type = models.NotificationTypeAnnouncement
	}

	users, err := nc.directory.ListUsers(c.UserContext(), req.Role)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if u.Id != user.Id {
			recipients = append(recipients, u.Id)
		}
	}

	sent, err := nc.log.Broadcast(c.UserContext(), recipients, req.Type, models.NotificationPayload{
		Message:      req.Message,
		FromUserId:   user.Id,
		FromUserName: user.Name,
		SourceType:   "broadcast",
	})
	if err != nil {
		lib.Log().Warn("Broadcast incomplete",
			zap.String("role", string(req.Role)), zap.Int("sent", sent), zap.Error(err))
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"sent":    sent,
	})
}
