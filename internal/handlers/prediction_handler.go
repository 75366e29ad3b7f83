package handlers

import (
	"bytes"

	"raidentrack/internal/middleware"
	"raidentrack/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PredictionHandler serves CSV forecasts.
type PredictionHandler struct {
	predictions *services.PredictionService
}

// NewPredictionHandler creates a new PredictionHandler.
func NewPredictionHandler(predictions *services.PredictionService) *PredictionHandler {
	return &PredictionHandler{predictions: predictions}
}

// RegisterRoutes registers the prediction route behind auth.
func (h *PredictionHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Post("/predictions", auth, h.HandlePredict)
}

// HandlePredict forecasts the progress report uploaded as multipart "file".
func (h *PredictionHandler) HandlePredict(c *fiber.Ctx) error {
	file, err := formFile(c, "file")
	if err != nil {
		return middleware.WriteError(c, err)
	}

	res, err := h.predictions.Predict(c.UserContext(), middleware.CurrentUser(c), bytes.NewReader(file.data))
	if err != nil {
		return middleware.WriteError(c, err)
	}
	return c.JSON(res)
}
