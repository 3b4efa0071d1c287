// Package api provides HTTP handlers for the assistant gateway.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/electrowiki/assistant/auth"
	"github.com/electrowiki/assistant/domain"
	"github.com/electrowiki/assistant/gateway"
	"github.com/electrowiki/assistant/store"
)

const msgMethodNotAllowed = "Method not allowed. Use POST to interact with the AI."

// maxListLimit caps the page size of the completions listing.
const maxListLimit = 500

// Handler handles HTTP requests.
type Handler struct {
	gateway  *gateway.Service
	resolver auth.Resolver
	store    store.Store
}

// NewHandler creates a new handler.
func NewHandler(gw *gateway.Service, resolver auth.Resolver, st store.Store) *Handler {
	return &Handler{
		gateway:  gw,
		resolver: resolver,
		store:    st,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/assistant", h.AssistantComplete)

	// The assistant endpoint is POST-only; other verbs get a fixed answer.
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		e.Add(method, "/api/assistant", h.MethodNotAllowed)
	}

	e.GET("/v1/completions", h.ListCompletions)

	e.GET("/health", h.Health)
}

// ErrorBody is the JSON body for error responses.
type ErrorBody struct {
	Error string `json:"error"`
}

// AssistantRequest is the assistant request body.
type AssistantRequest struct {
	Prompt *string `json:"prompt"`
}

// AssistantResponse is the assistant success body.
type AssistantResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
}

// AssistantComplete handles assistant prompts.
// POST /api/assistant
func (h *Handler) AssistantComplete(c echo.Context) error {
	ctx := c.Request().Context()

	// Identity first: an unauthenticated caller learns nothing about the
	// prompt contract.
	caller, err := h.resolver.Resolve(c.Request())
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			log.Printf("WARN: identity resolution failed: %v", err)
		}
		return c.JSON(http.StatusUnauthorized, ErrorBody{Error: gateway.MsgAuthRequired})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: gateway.MsgPromptRequired})
	}

	var req AssistantRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Prompt == nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: gateway.MsgPromptRequired})
	}

	result, err := h.gateway.Complete(ctx, *req.Prompt, caller)
	if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			return c.JSON(gerr.HTTPStatus(), ErrorBody{Error: gerr.Message})
		}
		log.Printf("ERROR: unclassified gateway failure: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorBody{Error: gateway.MsgUpstream})
	}

	return c.JSON(http.StatusOK, AssistantResponse{
		Response:  result.Text,
		Timestamp: result.IssuedAt.Format(time.RFC3339),
		User:      result.Caller,
	})
}

// MethodNotAllowed answers non-POST verbs on the assistant endpoint.
func (h *Handler) MethodNotAllowed(c echo.Context) error {
	return c.JSON(http.StatusMethodNotAllowed, ErrorBody{Error: msgMethodNotAllowed})
}

// ListCompletions returns recent completion audit records.
// GET /v1/completions?limit=N
func (h *Handler) ListCompletions(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := h.resolver.Resolve(c.Request()); err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorBody{Error: gateway.MsgAuthRequired})
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := h.store.ListCompletions(ctx, limit)
	if err != nil {
		log.Printf("ERROR: failed to list completions: %v", err)
		return c.JSON(http.StatusInternalServerError, ErrorBody{Error: gateway.MsgUpstream})
	}
	if records == nil {
		records = []domain.CompletionRecord{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"completions": records,
	})
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
