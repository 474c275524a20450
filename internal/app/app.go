package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/coursemart/internal/config"
	"github.com/polkiloo/coursemart/internal/server/http/handlers"
	"github.com/polkiloo/coursemart/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		NewBillingFacade,
		func(f *BillingFacade) handlers.BillingFacade { return f },
		newHTTPServer,
		newScheduleRunner,
	),
	fx.Invoke(registerLifecycle),
)

const readHeaderTimeout = 5 * time.Second

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:              p.Config.RunAddress,
		Handler:           p.Router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

type workerParams struct {
	fx.In

	Facade *BillingFacade
	Config *config.Config
	Logger *slog.Logger
}

func newScheduleRunner(p workerParams) *worker.ScheduleRunner {
	return worker.NewScheduleRunner(p.Facade, p.Config.ScheduleInterval, p.Logger)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Worker     *worker.ScheduleRunner
	Config     *config.Config
}

// registerLifecycle appends the runner hook before the server hook, so fx
// stops the HTTP server first and lets an in-flight schedule pass finish.
func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Worker.Start(context.WithoutCancel(ctx))
			p.Logger.Info("schedule runner started", slog.Duration("interval", p.Config.ScheduleInterval))
			return nil
		},
		OnStop: func(context.Context) error {
			p.Worker.Stop()
			p.Logger.Info("coursemart stopped")
			return nil
		},
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Logger.Info("starting coursemart", slog.String("addr", p.Server.Addr))
			go serve(p)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return shutdownServer(ctx, p.Server, p.Config.ShutdownTimeout)
		},
	})
}

func serve(p lifecycleParams) {
	err := p.Server.ListenAndServe()
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	p.Logger.Error("http server terminated", slog.String("error", err.Error()))
	_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
}

func shutdownServer(ctx context.Context, server *http.Server, timeout time.Duration) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
