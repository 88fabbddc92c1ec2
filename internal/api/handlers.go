package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pbaille/journal/internal/bucket"
	"github.com/pbaille/journal/internal/demo"
	"github.com/pbaille/journal/internal/journal"
	"github.com/pbaille/journal/internal/mirror"
)

// AddEntryRequest is the request body for keeping an entry
type AddEntryRequest struct {
	Text string `json:"text"`
}

// ImportResponse reports the outcome of an import or demo run
type ImportResponse struct {
	Added   int    `json:"added"`
	Message string `json:"message"`
}

func (s *Server) listEntries(c echo.Context) error {
	entries, err := s.entries.List()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) addEntry(c echo.Context) error {
	var req AddEntryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid request body")
	}

	entry, err := s.entries.Create(req.Text)
	if errors.Is(err, journal.ErrEmptyText) {
		return writeError(c, http.StatusBadRequest, "text is required")
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, entry)
}

func (s *Server) feed(c echo.Context) error {
	entries, err := s.entries.List()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	groups := bucket.GroupEntries(entries, s.config.Now())
	if groups == nil {
		groups = []bucket.Group{}
	}
	return c.JSON(http.StatusOK, map[string]any{"groups": groups})
}

func (s *Server) export(c echo.Context) error {
	var buf bytes.Buffer
	if err := s.entries.Export(&buf); err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	name := journal.ExportFilename(s.config.Now())
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, buf.Bytes())
}

func (s *Server) importEntries(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "could not read request body")
	}

	added, err := s.entries.ImportJSON(body)
	if errors.Is(err, journal.ErrUnreadable) {
		return writeError(c, http.StatusBadRequest, "file was unreadable")
	}
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	if added == 0 {
		return c.JSON(http.StatusOK, ImportResponse{Message: "No new entries found."})
	}
	return c.JSON(http.StatusOK, ImportResponse{Added: added, Message: fmt.Sprintf("Restored %d memories.", added)})
}

func (s *Server) demo(c echo.Context) error {
	generated := demo.Generate(s.config.Now(), s.config.DemoCount, s.config.DemoWindow, demo.NewRand())
	added, err := s.entries.Merge(generated)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ImportResponse{Added: added, Message: fmt.Sprintf("Generated %d entries.", added)})
}

func (s *Server) forget(c echo.Context) error {
	if err := s.entries.Clear(); err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listReflections(c echo.Context) error {
	reflections, err := s.reflections.List()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"reflections": reflections})
}

func (s *Server) reflectionStatus(c echo.Context) error {
	status, err := s.mirror.Status()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) reflect(c echo.Context) error {
	reflection, err := s.mirror.Reflect(c.Request().Context())
	if err != nil {
		status, message := reflectError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("reflection failed", zap.Error(err))
		}
		return writeError(c, status, message)
	}
	return c.JSON(http.StatusCreated, reflection)
}

func reflectError(err error) (int, string) {
	switch {
	case errors.Is(err, mirror.ErrLocked):
		return http.StatusForbidden, "The mirror is still forming."
	case errors.Is(err, mirror.ErrTooSoon):
		return http.StatusTooManyRequests, "The mirror was consulted less than a day ago."
	case errors.Is(err, mirror.ErrInFlight):
		return http.StatusConflict, "The mirror is already observing."
	case errors.Is(err, journal.ErrCleared):
		return http.StatusConflict, "The journal was cleared while the mirror was observing."
	case errors.Is(err, mirror.ErrUnavailable):
		return http.StatusServiceUnavailable, "The mirror is cloudy right now."
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
