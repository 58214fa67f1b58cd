package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/reviewdesk/internal/core"
	"github.com/jo-hoe/reviewdesk/internal/frontend"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review web application",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				config.Port = port
			}
			return serve(cmd.Context(), config)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the configured HTTP port")
	return cmd
}

func serve(parent context.Context, config *core.ServiceConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coreService, err := core.NewCoreService(config)
	if err != nil {
		return fmt.Errorf("failed to start core service: %w", err)
	}
	server, err := defineServer()
	if err != nil {
		return err
	}

	frontendService := frontend.NewFrontendService(config, coreService)
	frontendService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", config.Port, "images", config.ImageFolder, "data", config.DataFolder)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var errs []error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			slog.Error("http server error", "error", err)
			errs = append(errs, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := coreService.Close(); err != nil {
		errs = append(errs, fmt.Errorf("core service close: %w", err))
	}
	return errors.Join(errs...)
}

func defineServer() (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Configure request logger to skip the health probe
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogHost:      true,
		LogUserAgent: true,
		LogRoutePath: true,
		LogRequestID: true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"host", v.Host,
				"user_agent", v.UserAgent,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Error("request", append(attrs, "error", v.Error)...)
			} else {
				slog.Info("request", attrs...)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())

	validator, err := frontend.NewValidator()
	if err != nil {
		return nil, err
	}
	e.Validator = validator

	return e, nil
}
