package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/remote"
	"github.com/existflow/ironboard/internal/store"
)

// errorStatus maps store errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, op string, err error) error {
	status := errorStatus(err)
	fields := []logger.Field{
		logger.F("op", op),
		logger.F("user_id", userID(c)),
		logger.F("status", status),
		logger.Err(err),
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Debug("request rejected", fields...)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

// decodeJSON reads the request body into v
func decodeJSON(c echo.Context, v any) error {
	return json.NewDecoder(c.Request().Body).Decode(v)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func wildcard(c echo.Context) string {
	return strings.Trim(c.Param("*"), "/")
}

// handleCreate adds a document to a collection
func (s *Server) handleCreate(c echo.Context) error {
	var data map[string]any
	if err := decodeJSON(c, &data); err != nil {
		return badRequest(c, "invalid request")
	}
	if data == nil {
		return badRequest(c, "document must be an object")
	}

	id, err := s.store.Create(c.Request().Context(), wildcard(c), data)
	if err != nil {
		return s.fail(c, "create", err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// handleUpdate merges fields into a document
func (s *Server) handleUpdate(c echo.Context) error {
	var fields store.Fields
	if err := decodeJSON(c, &fields); err != nil {
		return badRequest(c, "invalid request")
	}

	if err := s.store.Update(c.Request().Context(), wildcard(c), fields); err != nil {
		return s.fail(c, "update", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleDelete removes a document and everything beneath it
func (s *Server) handleDelete(c echo.Context) error {
	if err := s.store.Delete(c.Request().Context(), wildcard(c)); err != nil {
		return s.fail(c, "delete", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleBatch commits several updates atomically
func (s *Server) handleBatch(c echo.Context) error {
	var req remote.BatchRequest
	if err := decodeJSON(c, &req); err != nil {
		return badRequest(c, "invalid request")
	}

	if err := s.store.Batch(c.Request().Context(), req.Writes); err != nil {
		return s.fail(c, "batch", err)
	}
	s.log.Debug("batch committed", logger.F("user_id", userID(c)), logger.F("writes", len(req.Writes)))
	return c.NoContent(http.StatusNoContent)
}
