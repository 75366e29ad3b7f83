package handlers

import (
	"fmt"

	"raidentrack/internal/middleware"
	"raidentrack/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	accounts *services.AccountService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accounts *services.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts, validate: validator.New()}
}

// RegisterRoutes registers the account routes behind auth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/protected", auth, h.HandleProtected)

	me := router.Group("/users/me", auth)
	me.Get("/", h.HandleProfile)
	me.Put("/username", h.HandleChangeUsername)
	me.Post("/password", h.HandleChangePassword)
	me.Post("/avatar", h.HandleUploadAvatar)
	me.Get("/imports", h.HandleRecentImports)
}

// HandleProtected greets the authenticated user.
func (h *UserHandler) HandleProtected(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Welcome, %s!", user.Username),
		"userid":  user.PublicID,
		"is_sudo": user.IsAdmin,
	})
}

// HandleProfile returns the caller's profile.
func (h *UserHandler) HandleProfile(c *fiber.Ctx) error {
	return c.JSON(services.NewProfile(middleware.CurrentUser(c)))
}

// ChangeUsernameRequest represents the request body for a rename.
type ChangeUsernameRequest struct {
	NewUsername string `json:"new_username" form:"new_username" validate:"required,min=3,max=50"`
}

func (h *UserHandler) HandleChangeUsername(c *fiber.Ctx) error {
	var req ChangeUsernameRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	user, err := h.accounts.ChangeUsername(c.UserContext(), middleware.CurrentUser(c), req.NewUsername)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(user)
}

// ChangePasswordRequest represents the request body for a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" form:"old_password" validate:"required"`
	NewPassword string `json:"new_password" form:"new_password" validate:"required,min=6,max=72"`
}

func (h *UserHandler) HandleChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	if err := h.accounts.ChangePassword(c.UserContext(), middleware.CurrentUser(c), req.OldPassword, req.NewPassword); err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed successfully."})
}

// HandleUploadAvatar stores the multipart "profile_pic" file as the caller's
// profile picture.
func (h *UserHandler) HandleUploadAvatar(c *fiber.Ctx) error {
	file, err := formFile(c, "profile_pic")
	if err != nil {
		return middleware.WriteError(c, err)
	}

	url, err := h.accounts.UploadAvatar(c.UserContext(), middleware.CurrentUser(c), file.contentType, file.data)
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(fiber.Map{"profile_pic": url})
}

func (h *UserHandler) HandleRecentImports(c *fiber.Ctx) error {
	views, err := h.accounts.RecentImports(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(views)
}
