// Package main is the entry point for a peersync node.
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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/term" //nolint:depguard // Required for TTY detection

	"github.com/joe/peersync/internal/config"
	"github.com/joe/peersync/internal/logging"
	"github.com/joe/peersync/internal/metrics"
	"github.com/joe/peersync/internal/store"
	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/transport/rtc"
	"github.com/joe/peersync/internal/tui"
	"github.com/joe/peersync/internal/tui/shared"
)

const (
	pairingTimeout  = 2 * time.Minute
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logging.L().Error("node stopped", zap.Error(err))
		_ = logging.Sync()

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	_ = logging.Sync()
}

//nolint:funlen // Startup sequence reads top to bottom
func run(cfg *config.Config) error {
	output := cfg.LogFile
	if output == "" {
		output = "stderr"
	}

	if err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat.String(),
		OutputPath: output,
	}); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	log := logging.L()
	peerID := uuid.NewString()
	log.Info("starting node",
		zap.String("peer", peerID),
		zap.String("role", cfg.Role.String()),
		zap.String("folder", cfg.Folder))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logging.WithLogger(ctx, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, reg, log)
		defer shutdown(server, log)
	}

	filter, err := syncengine.NewIgnoreFilter(cfg.Ignore)
	if err != nil {
		return err
	}

	acquirer := newFolderAcquirer(cfg.Folder, log)
	engine := syncengine.NewEngine(syncengine.Options{
		Logger:       log.Named("engine"),
		Filter:       filter,
		Acquirer:     acquirer,
		Store:        store.NewJSONStore(cfg.StateFile),
		Metrics:      metrics.NewRecorder(reg),
		LowWaterMark: cfg.LowWaterMark,
		StallTimeout: cfg.StallTimeout,
	})
	defer engine.Close()

	var bridge *shared.EventBridge
	if cfg.Headless {
		engine.SetEventEmitter(newEventLogger(log.Named("events")))
	} else {
		bridge = shared.NewEventBridge()
		defer bridge.Close()
		engine.SetEventEmitter(bridge)
	}

	if err := engine.Start(); err != nil {
		return err
	}

	folderID, err := bindFolders(engine, cfg, acquirer, log)
	if err != nil {
		return err
	}

	signaler := rtc.NewSignaler(peerID, iceServers(cfg.STUNServers), log.Named("rtc"))

	pairCtx, cancel := context.WithTimeout(ctx, pairingTimeout)
	conn, err := pair(pairCtx, signaler, cfg.Role, os.Stdin, os.Stderr)
	cancel()

	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Role == config.RoleAnswer {
		folderID = ""
	}

	if err := attachPeer(ctx, engine, conn, folderID); err != nil {
		return err
	}

	if cfg.Headless {
		<-ctx.Done()
		log.Info("shutting down")

		return nil
	}

	return runMonitor(ctx, engine, bridge, "This device: "+syncengine.PeerName(peerID)+
		"  ·  Peer: "+syncengine.PeerName(conn.RemoteID()))
}

// attachPeer opens the data channel and hands it to the engine.
func attachPeer(ctx context.Context, engine *syncengine.Engine, conn *rtc.Connection, folderID string) error {
	openCtx, cancel := context.WithTimeout(ctx, pairingTimeout)
	defer cancel()

	dc, err := conn.DataChannel(openCtx)
	if err != nil {
		return fmt.Errorf("data channel did not open: %w", err)
	}

	remoteID := conn.RemoteID()
	log := logging.WithContext(logging.WithPeer(ctx, remoteID))

	receiver, err := engine.ConnectPeer(remoteID, folderID, dc)
	if err != nil {
		return err
	}

	rtc.AttachDataChannel(dc, receiver)
	conn.OnStatus(func(status syncengine.PeerStatus) {
		log.Info("connection status", zap.Stringer("status", status))
		engine.SetPeerStatus(remoteID, status)
	})
	engine.SetPeerStatus(remoteID, syncengine.PeerConnected)
	log.Info("peer attached", zap.String("folder", folderID))

	return nil
}

func iceServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}

	return []webrtc.ICEServer{{URLs: urls}}
}

func runMonitor(ctx context.Context, engine *syncengine.Engine, bridge *shared.EventBridge, header string) error {
	var opts []tea.ProgramOption
	if term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, tea.WithAltScreen())
	}

	opts = append(opts, tea.WithContext(ctx))

	_, err := tea.NewProgram(tui.NewAppModel(engine, bridge, header), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}

	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	return server
}

func shutdown(server *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}
}
