package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/mesh"
)

// runtime holds the resources shared by the commands talking to the
// daemon.
type runtime struct {
	session *mesh.Session
	closers []func() error
}

// sessionConfig builds the session configuration from the global flags.
// Resources it opens are appended to rt.closers.
func (rt *runtime) sessionConfig() (mesh.Config, error) {
	config := mesh.DefaultConfig()
	config.Service = serviceName
	config.CallTimeout = callTimeout
	config.DeliveryTimeout = deliveryTimeout
	config.Logger = logger

	loggers := []log.Logger{log.NewSlogAdapter(logger)}
	if protocolLog != "" {
		fileLogger, err := log.NewFileLogger(protocolLog)
		if err != nil {
			return mesh.Config{}, fmt.Errorf("failed to open protocol log: %w", err)
		}
		rt.closers = append(rt.closers, fileLogger.Close)
		loggers = append(loggers, fileLogger)
		logger.Info("Protocol logging enabled", "file", protocolLog)
	}
	config.ProtocolLogger = log.NewMultiLogger(loggers...)

	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		config.Metrics = mesh.NewMetrics(registry)
		rt.closers = append(rt.closers, serveMetrics(metricsAddr, registry))
	}
	return config, nil
}

// serveMetrics exposes registry on addr under /metrics and returns a
// function that shuts the server down.
func serveMetrics(addr string, registry *prometheus.Registry) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// openRuntime connects to the system bus.
func openRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}
	config, err := rt.sessionConfig()
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	session, err := mesh.Connect(ctx, config)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.session = session
	rt.closers = append([]func() error{session.Close}, rt.closers...)
	return rt, nil
}

// Close releases the session, the protocol log and the metrics server.
func (rt *runtime) Close() error {
	var err error
	for _, c := range rt.closers {
		err = multierr.Append(err, c())
	}
	rt.closers = nil
	return err
}

// register registers app at root and attaches it to the node identified by
// token. The handle is unregistered if the attach fails.
func (rt *runtime) register(ctx context.Context, root dbus.ObjectPath, app mesh.Application, token string) (*mesh.ApplicationHandle, *mesh.Node, error) {
	t, err := mesh.ParseToken(token)
	if err != nil {
		return nil, nil, err
	}

	handle, err := rt.session.RegisterApplication(ctx, root, app)
	if err != nil {
		return nil, nil, err
	}

	node, err := rt.session.Network().Attach(ctx, handle, t)
	if err != nil {
		return nil, nil, multierr.Append(err, handle.Unregister())
	}
	logger.Info("Attached", "root", root, "node", node.Path())
	return handle, node, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
