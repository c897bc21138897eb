package routes

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/notifico/notifico/internal/dispatch"
	"github.com/notifico/notifico/internal/services"
)

const maxPayloadBytes = 1 << 20

// HookRoutes exposes the generic hook receive endpoint.
type HookRoutes struct {
	dispatcher *dispatch.Dispatcher
}

// NewHookRoutes constructs the hook receive routes.
func NewHookRoutes(dispatcher *dispatch.Dispatcher) *HookRoutes {
	return &HookRoutes{dispatcher: dispatcher}
}

// RegisterRoutes registers the receive endpoint. Some providers probe with
// GET before posting, so both methods are accepted.
func (h *HookRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/h/:project_id/:key", h.receive)
	s.GET("/h/:project_id/:key", h.receive)
}

func (h *HookRoutes) receive(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("project_id"), 10, 64)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	key := c.Param("key")

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPayloadBytes))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	status, err := h.dispatcher.Receive(c.Request().Context(), projectID, key, &services.Request{
		Method: c.Request().Method,
		Header: c.Request().Header,
		Query:  c.QueryParams(),
		Body:   body,
	})
	if err != nil {
		// Counter updates must not fail silently; surfacing the error makes
		// the legitimate sender retry.
		return echo.NewHTTPError(http.StatusInternalServerError)
	}
	if status == dispatch.StatusNotFound {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}
