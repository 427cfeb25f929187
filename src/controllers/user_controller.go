package controllers

import (
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/middleware"
	"github.com/Udit004/alumni-networking-sub003/src/recommend"
	"github.com/gofiber/fiber/v2"
)

// UserController serves profile reads and suggestions
type UserController struct {
	recommender *recommend.Recommender
}

func NewUserController(recommender *recommend.Recommender) *UserController {
	return &UserController{recommender: recommender}
}

// GetCurrentUser returns the authenticated user's profile
func (uc *UserController) GetCurrentUser(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.Status(fiber.StatusOK).JSON(user)
}

// GetSuggestedConnections returns ranked connection suggestions
func (uc *UserController) GetSuggestedConnections(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return lib.ErrorResponse(c, lib.NewBaseError(lib.KindValidation, "limit must not be negative", nil))
	}

	suggestions, err := uc.recommender.Suggestions(c.UserContext(), user.Id, limit)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	if suggestions == nil {
		suggestions = []recommend.Suggestion{}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"suggestions": suggestions})
}
