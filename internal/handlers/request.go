package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"

	"raidentrack/internal/middleware"
	"raidentrack/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// bind parses the request body into dst and validates it. When it returns
// false the error response has already been written.
func bind(c *fiber.Ctx, validate *validator.Validate, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		log.Printf("Error parsing %s request body: %v", c.Path(), err)
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   middleware.CodeValidation,
		})
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return false, middleware.WriteError(c, err)
		}
		errorMessages := make(map[string]string)
		for _, e := range validationErrors {
			errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   middleware.CodeValidation,
			"errors":  errorMessages,
		})
	}
	return true, nil
}

// upload is a file read from a multipart form field.
type upload struct {
	contentType string
	data        []byte
}

// formFile reads the named multipart file. A missing field is a validation error.
func formFile(c *fiber.Ctx, field string) (*upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, &services.Error{Kind: services.ErrValidation, Reason: fmt.Sprintf("File field '%s' is required", field)}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %s: %w", fh.Filename, err)
	}
	return &upload{contentType: fh.Header.Get(fiber.HeaderContentType), data: data}, nil
}
