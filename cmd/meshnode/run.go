package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/whispurrnet/overlay/config"
	"github.com/whispurrnet/overlay/connmgr"
	"github.com/whispurrnet/overlay/control"
	"github.com/whispurrnet/overlay/health"
	"github.com/whispurrnet/overlay/identity"
	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/internal/metrics"
	"github.com/whispurrnet/overlay/orchestrator"
	"github.com/whispurrnet/overlay/transport"
)

var (
	configDir string
	seedPeers []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a node and keep it running until interrupted",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&configDir, "config-dir", "config", "directory to load config.yaml/default.yaml/<env>.yaml from")
	runCmd.Flags().StringSliceVar(&seedPeers, "seed", nil, "seed peer as node_id=hex_public_key, repeatable")
}

func runRun(cmd *cobra.Command, args []string) error {
	runID := uuid.NewString()

	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	nodeID, err := identity.GenerateNodeID()
	if err != nil {
		return fmt.Errorf("generate node id: %w", err)
	}
	keys, err := identity.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}

	if cfg.Debug {
		logger.GetDefaultLogger().SetLevel(logger.DebugLevel)
	}

	logger.Info("meshnode: starting",
		logger.String("run_id", runID),
		logger.String("node_id", nodeID),
		logger.Bool("debug", cfg.Debug))

	mgr := connmgr.NewManager(nodeID, keys, cfg.Connection, cfg.MaxConnections)
	defer mgr.Shutdown()

	orch := orchestrator.NewOrchestrator(nodeID, mgr, cfg.Gossip, nil)
	orch.Start()
	defer orch.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acceptor := transport.ListenDirectAccept(nodeID)
	defer acceptor.Close()
	go mgr.AcceptDirectLoop(ctx, acceptor)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		stop := make(chan struct{})
		defer close(stop)
		collector.PollEvery(time.Second, orch, stop)

		metricsSrv = metrics.StartServer(cfg.Metrics.Addr, cfg.Metrics.Path)
		logger.Info("meshnode: metrics endpoint listening", logger.String("addr", cfg.Metrics.Addr))
	}

	var healthSrv *health.Server
	if cfg.Health.Enabled {
		checker := health.NewChecker(5 * time.Second)
		health.RegisterDefaults(checker, orch)
		healthSrv = health.NewServer(checker, cfg.Health.Addr, false)
		healthSrv.Start()
		logger.Info("meshnode: health endpoint listening", logger.String("addr", cfg.Health.Addr))
	}

	var controlSrv *control.Server
	if cfg.Control.Enabled {
		controlSrv = control.NewServer(orch, cfg.Control.Addr)
		controlSrv.Start()
		logger.Info("meshnode: control endpoint listening", logger.String("addr", cfg.Control.Addr))
	}

	for _, seed := range seedPeers {
		peerID, pubKey, err := parseSeedPeer(seed)
		if err != nil {
			logger.Warn("meshnode: skipping malformed seed peer", logger.String("seed", seed), logger.Error(err))
			continue
		}
		if ok := mgr.ConnectToPeer(ctx, peerID, pubKey); !ok {
			logger.Warn("meshnode: seed peer connection failed", logger.String("peer_id", peerID))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("meshnode: shutting down", logger.String("run_id", runID))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if healthSrv != nil {
		_ = healthSrv.Stop(shutdownCtx)
	}
	if controlSrv != nil {
		_ = controlSrv.Stop(shutdownCtx)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// parseSeedPeer splits a "node_id=hex_public_key" --seed value.
func parseSeedPeer(seed string) (string, []byte, error) {
	parts := strings.SplitN(seed, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("expected node_id=hex_public_key")
	}
	peerID := parts[0]
	if !identity.ValidateNodeID(peerID) {
		return "", nil, fmt.Errorf("invalid node id %q", peerID)
	}
	pubKey, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid hex public key: %w", err)
	}
	return peerID, pubKey, nil
}
