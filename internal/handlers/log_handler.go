package handlers

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"

	"raidentrack/internal/middleware"
	"raidentrack/internal/services"

	"github.com/gofiber/fiber/v2"
)

// LogHandler exposes the process log file.
type LogHandler struct {
	path string
}

// NewLogHandler creates a LogHandler reading the file at path.
func NewLogHandler(path string) *LogHandler {
	return &LogHandler{path: path}
}

// RegisterRoutes registers the log route behind auth.
func (h *LogHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/logs", auth, h.HandleLogs)
}

// HandleLogs returns the non-empty log lines, newest first.
func (h *LogHandler) HandleLogs(c *fiber.Ctx) error {
	lines, err := ReadLogLines(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return middleware.WriteError(c, &services.Error{Kind: services.ErrNotFound, Reason: "Log file not found"})
		}
		return middleware.WriteError(c, &services.Error{Kind: services.ErrInternal, Reason: "Error reading log file"})
	}
	return c.JSON(lines)
}

// ReadLogLines reads path and returns its trimmed non-empty lines in reverse order.
func ReadLogLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return lines, nil
}
