// routes_serve.go - Server-Start und Lebenszyklus
//
// Dieses Modul enthaelt:
// - Serve: Pipeline laden, Engine bauen, initialer Scan, HTTP-Server
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/7blacky7/lorapatch/envconfig"
	"github.com/7blacky7/lorapatch/logutil"
	"github.com/7blacky7/lorapatch/lora"
	"github.com/7blacky7/lorapatch/ml"
	"github.com/7blacky7/lorapatch/pipeline"
	"github.com/7blacky7/lorapatch/version"
)

// Serve startet den HTTP-Server ueber einer frisch gebauten Engine
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	path := envconfig.PipelinePath()
	if path == "" {
		return errors.New("LORAPATCH_PIPELINE is not set, a base model is required")
	}

	pipe, err := pipeline.Load(path, ml.DeviceCPU)
	if err != nil {
		return fmt.Errorf("load pipeline: %w", err)
	}
	slog.Info("pipeline loaded", "path", path, "layers", pipe.LayerCount())

	engine, err := lora.NewEngine(pipe, lora.OptionsFromEnv())
	if err != nil {
		return err
	}

	if err := engine.Registry().Scan(); err != nil {
		slog.Warn("initial adapter scan failed", "error", err)
	}

	s := &Server{addr: ln.Addr(), engine: engine}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	http.Handle("/", h)

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{
		// Use http.DefaultServeMux so we get net/http/pprof for
		// free.
		Handler: nil,
	}

	// Auf ctrl+c sauber herunterfahren
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
	}()

	if err := srvr.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
