// Package server assembles the HTTP surface around the conversation engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/qcheck/taskbot/internal/profile"
	apiv1 "github.com/qcheck/taskbot/server/router/api/v1"
	"github.com/qcheck/taskbot/server/service/taskspec"
)

// Server hosts the engine behind an echo HTTP server.
type Server struct {
	echoServer *echo.Echo
	profile    *profile.Profile
}

// NewServer wires the API routes.
func NewServer(profile *profile.Profile, engine *taskspec.Engine) *Server {
	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true

	apiv1.NewAPIV1Service(engine).Register(echoServer)

	return &Server{
		echoServer: echoServer,
		profile:    profile,
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("server listening", "address", address, "mode", s.profile.Mode)
	if err := s.echoServer.Start(address); err != nil {
		return errors.Wrap(err, "failed to start server")
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echoServer.Shutdown(ctx)
}
