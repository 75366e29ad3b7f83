package handlers

import (
	"bytes"
	"fmt"
	"log"
	"strconv"

	"raidentrack/internal/middleware"
	"raidentrack/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the admin panel.
type AdminHandler struct {
	admins   *services.AdminService
	validate *validator.Validate
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admins *services.AdminService) *AdminHandler {
	return &AdminHandler{admins: admins, validate: validator.New()}
}

// RegisterRoutes registers the admin routes; every route requires the admin role.
func (h *AdminHandler) RegisterRoutes(router fiber.Router, admin fiber.Handler) {
	adminRoutes := router.Group("/admin", admin)
	adminRoutes.Get("/", h.HandleWelcome)
	adminRoutes.Get("/users", h.HandleListUsers)
	adminRoutes.Put("/users/:userid", h.HandleUpdateUser)
	adminRoutes.Delete("/users/:userid", h.HandleDeleteUser)
	adminRoutes.Post("/imports/preview", h.HandlePreviewImport)
}

func (h *AdminHandler) HandleWelcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Welcome, %s! to admin access.", middleware.CurrentUser(c).Username),
	})
}

func (h *AdminHandler) HandleListUsers(c *fiber.Ctx) error {
	users, err := h.admins.ListUsers(c.UserContext())
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(users)
}

// UpdateUserRequest represents the request body of an admin update. Absent
// fields are left unchanged.
type UpdateUserRequest struct {
	NewPassword *string `json:"new_password" validate:"omitempty,max=72"`
	IsAdmin     *bool   `json:"is_admin"`
}

// HandleUpdateUser resets the password and/or changes the role of a user.
func (h *AdminHandler) HandleUpdateUser(c *fiber.Ctx) error {
	publicID, err := userIDParam(c)
	if err != nil {
		return middleware.WriteError(c, err)
	}

	var req UpdateUserRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.admins.UpdateUser(c.UserContext(), publicID, services.UserUpdate{
		NewPassword: req.NewPassword,
		IsAdmin:     req.IsAdmin,
	})
	if err != nil {
		return middleware.WriteError(c, err)
	}
	log.Printf("Admin %s updated user %d", middleware.CurrentUser(c).Username, publicID)
	return c.JSON(user)
}

// HandleDeleteUser deletes a user and their import history.
func (h *AdminHandler) HandleDeleteUser(c *fiber.Ctx) error {
	publicID, err := userIDParam(c)
	if err != nil {
		return middleware.WriteError(c, err)
	}

	user, err := h.admins.DeleteUser(c.UserContext(), publicID)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	log.Printf("Admin %s deleted user %d", middleware.CurrentUser(c).Username, publicID)
	return c.JSON(user)
}

// HandlePreviewImport validates an uploaded CSV and returns its first rows.
func (h *AdminHandler) HandlePreviewImport(c *fiber.Ctx) error {
	file, err := formFile(c, "file")
	if err != nil {
		return middleware.WriteError(c, err)
	}

	preview, err := h.admins.PreviewImport(bytes.NewReader(file.data))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(preview)
}

func userIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("userid"), 10, 64)
	if err != nil {
		return 0, &services.Error{Kind: services.ErrValidation, Reason: "userid must be an integer"}
	}
	return id, nil
}
