package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 5 * time.Second
	defaultWriteTimeout   = 10 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

// newServer builds the API's http.Server. Request contexts derive from a base
// context that is cancelled when Shutdown starts, so long-lived responses such
// as the transaction event stream end instead of holding the drain open.
func (app *Application) newServer(handler http.Handler) *http.Server {
	baseCtx, cancelBase := context.WithCancel(context.Background())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.Config.HttpPort),
		Handler:      handler,
		ErrorLog:     slog.NewLogLogger(app.Logger.Handler(), slog.LevelWarn),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}
	srv.RegisterOnShutdown(cancelBase)

	return srv
}

// ServeHTTP runs the API until SIGINT or SIGTERM, then drains requests and
// stops the background services in dependency order.
func (app *Application) ServeHTTP() error {
	srv := app.newServer(app.routes())

	shutdownErrorChan := make(chan error)

	go func() {
		quitChan := make(chan os.Signal, 1)
		signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
		<-quitChan

		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownPeriod)
		defer cancel()

		shutdownErrorChan <- srv.Shutdown(ctx)
	}()

	app.Logger.Info("starting server", slog.Group("server", "addr", srv.Addr, "mode", app.Config.Mode))

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownErrorChan

	// background services stop even when the drain timed out
	app.shutdown()

	if err != nil {
		return err
	}

	app.Logger.Info("stopped server", slog.Group("server", "addr", srv.Addr))
	return nil
}

func (app *Application) shutdown() {
	app.cancelWorkers()
	app.Tracker.Shutdown()

	if err := app.Scheduler.Shutdown(); err != nil {
		app.Logger.Error("scheduler shutdown failed", "error", err)
	}

	app.WG.Wait()

	app.Kafka.Close()
	app.Chain.Close()

	if err := app.Cache.Close(); err != nil {
		app.Logger.Error("cache close failed", "error", err)
	}

	if err := app.DB.Close(); err != nil {
		app.Logger.Error("database close failed", "error", err)
	}
}
