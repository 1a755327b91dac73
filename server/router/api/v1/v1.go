// Package v1 exposes the conversation engine over HTTP. The surface is
// deliberately small: one endpoint posts a message to a session, everything
// else the engine decides internally.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	engineerrors "github.com/qcheck/taskbot/server/internal/errors"
	"github.com/qcheck/taskbot/server/service/taskspec"
)

// APIV1Service registers the v1 HTTP routes.
type APIV1Service struct {
	engine *taskspec.Engine
}

// NewAPIV1Service creates the v1 API surface.
func NewAPIV1Service(engine *taskspec.Engine) *APIV1Service {
	return &APIV1Service{engine: engine}
}

// Register mounts the routes on the echo server.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.Use(middleware.Recover())

	e.GET("/healthz", s.healthz)

	group := e.Group("/api/v1")
	group.POST("/messages", s.postMessage)
}

func (s *APIV1Service) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// postMessageRequest is one conversation turn.
type postMessageRequest struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	Text      string `json:"text"`
	Timezone  string `json:"timezone"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *APIV1Service) postMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(engineerrors.ErrCodeInvalidArgument),
			Message: "malformed request body",
		})
	}
	if req.User == "" || req.Text == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Code:    string(engineerrors.ErrCodeInvalidArgument),
			Message: "user and text are required",
		})
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	reply, err := s.engine.PostMessage(c.Request().Context(), req.SessionID, req.User, req.Text, req.Timezone)
	if err != nil {
		return c.JSON(statusOf(err), errorResponse{
			Code:    string(engineerrors.CodeOf(err, engineerrors.ErrCodePersistenceFailed)),
			Message: userMessage(err),
		})
	}
	return c.JSON(http.StatusOK, reply)
}

func statusOf(err error) int {
	switch engineerrors.CodeOf(err, "") {
	case engineerrors.ErrCodeSessionBusy:
		return http.StatusConflict
	case engineerrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case engineerrors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	var engineErr *engineerrors.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Message
	}
	return "internal error"
}
