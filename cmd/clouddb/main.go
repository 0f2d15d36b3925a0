package main

import (
	"clouddb/internal/logger"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	// Drivers
	_ "github.com/alexbrainman/odbc"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	app := cli.NewApp()
	app.Name = "clouddb"
	app.Usage = "hosted JSON tables behind API keys"
	app.Action = serve
	app.Commands = []cli.Command{
		serveCommand,
		signUpCommand,
		signInCommand,
		signOutCommand,
		whoAmICommand,
		passwdCommand,
		resetPasswordCommand,
		dbCommand,
		tableCommand,
		keyCommand,
		queryCommand,
		logsCommand,
		strikesCommand,
		exportCommand,
		importCommand,
	}
	app.Commands = append(app.Commands, serviceCommands()...)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "[clouddb] %v\n", err)
		os.Exit(1)
	}
}

var serveCommand = cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server (default).",
	Action: serve,
}

func serve(c *cli.Context) error {
	if isRunningAsService() {
		return runAsService()
	}

	// Graceful shutdown channel
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return startServer(stop)
}

// startServer runs until stop fires, then drains in-flight requests.
func startServer(stop <-chan os.Signal) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Log.Info("Starting clouddb...")

	handler, stopLimiters := a.router()
	defer stopLimiters()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		logger.Log.Info("Server listening", zap.Int("port", a.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
	}()

	select {
	case <-stop:
	case err := <-failed:
		logger.Log.Error("Server startup failed", zap.Error(err))
		return err
	}
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server shutdown error", zap.Error(err))
	}
	logger.Log.Info("Server stopped")
	return nil
}
