package controllers

import (
	"github.com/Udit004/alumni-networking-sub003/src/connections"
	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/middleware"
	"github.com/gofiber/fiber/v2"
)

// ConnectionController serves the connection graph transitions
type ConnectionController struct {
	machine *connections.Machine
}

func NewConnectionController(machine *connections.Machine) *ConnectionController {
	return &ConnectionController{machine: machine}
}

// SendConnectionRequest sends a connection request from the authenticated user to another user
func (cc *ConnectionController) SendConnectionRequest(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	outcome, err := cc.machine.RequestConnection(c.UserContext(), user.Id, c.Params("userId"))
	if err != nil {
		return lib.ErrorResponse(c, err)
	}

	message := "Connection request sent successfully"
	if outcome == connections.OutcomeConnected {
		message = "Connection request accepted"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"status":  outcome,
	})
}

// AcceptConnectionRequest accepts the pending request sent by :userId
func (cc *ConnectionController) AcceptConnectionRequest(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := cc.machine.Accept(c.UserContext(), c.Params("userId"), user.Id); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Connection accepted successfully"))
}

// DeclineConnectionRequest declines the pending request sent by :userId
func (cc *ConnectionController) DeclineConnectionRequest(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := cc.machine.Decline(c.UserContext(), c.Params("userId"), user.Id); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Connection request declined"))
}

// WithdrawConnectionRequest cancels the authenticated user's request to :userId
func (cc *ConnectionController) WithdrawConnectionRequest(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := cc.machine.Withdraw(c.UserContext(), user.Id, c.Params("userId")); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Connection request withdrawn"))
}

// RemoveConnection removes an existing connection
func (cc *ConnectionController) RemoveConnection(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	if err := cc.machine.Disconnect(c.UserContext(), user.Id, c.Params("userId")); err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Connection removed successfully"))
}

// GetUserConnections lists the authenticated user's connections
func (cc *ConnectionController) GetUserConnections(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	ids, err := cc.machine.Connections(c.UserContext(), user.Id)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"connections": ids})
}

// GetConnectionRequests lists pending requests in both directions
func (cc *ConnectionController) GetConnectionRequests(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	reqs, err := cc.machine.Requests(c.UserContext(), user.Id)
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(reqs)
}

// GetConnectionStatus reports how the authenticated user relates to :userId
func (cc *ConnectionController) GetConnectionStatus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	status, err := cc.machine.Status(c.UserContext(), user.Id, c.Params("userId"))
	if err != nil {
		return lib.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": status})
}
