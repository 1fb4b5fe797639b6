// Command lidar2d-agent consumes raw angular scan frames from one or
// more 2D LIDAR devices over MQTT, fuses them into a world-space point
// cloud, clusters and tracks objects, and republishes the results.
//
// # Startup Flow
//
//  1. Parse command-line flags (bus endpoint, tuning parameters, config path)
//  2. Initialize the logger at the configured level
//  3. Load persisted config from disk, or seed defaults
//  4. Connect to the message bus
//  5. Start the config persistence goroutine, the periodic publish
//     tick, and the pipeline orchestrator
//  6. Subscribe to scans, saveLidarConfig, and requestAutoMask
//  7. Block until SIGINT/SIGTERM, then drain and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/bus"
	"github.com/tether-systems/lidar2d-agent/internal/codec"
	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
	"github.com/tether-systems/lidar2d-agent/internal/logging"
	"github.com/tether-systems/lidar2d-agent/internal/pipeline"
)

const (
	shutdownGrace = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tetherHost     = flag.String("tether.host", "tcp://localhost:1883", "MQTT broker URL")
		tetherUsername = flag.String("tether.username", "", "MQTT username")
		tetherPassword = flag.String("tether.password", "", "MQTT password")

		includeOutside = flag.Bool("perspectiveTransform.includeOutside", false, "emit projected points outside the ROI unit square")

		clusterEps            = flag.Float64("cluster.eps", 0.3, "DBSCAN neighbourhood radius, metres")
		clusterMinPoints       = flag.Int("cluster.minPoints", 3, "DBSCAN minimum points per cluster")
		clusterMaxClusterSize  = flag.Int("cluster.maxClusterSize", 200, "drop clusters larger than this many points (0 disables)")

		trackingMaxMatchDistance = flag.Float64("tracking.maxMatchDistance", 0.3, "hard gate for track/detection matching")
		trackingTrackTimeout     = flag.Int("tracking.trackTimeout", 10, "frames a track may go unmatched before retirement")
		trackingAlpha            = flag.Float64("tracking.alpha", 0.5, "position smoothing factor")
		trackingBeta             = flag.Float64("tracking.beta", 0.3, "velocity smoothing factor")
		trackingMinMatchCount    = flag.Int("tracking.minMatchCount", 2, "matches required before a track is emitted")

		publishIntervalMs     = flag.Int("publishInterval", 33, "periodic republish tick, milliseconds")
		logLevel              = flag.String("loglevel", "info", "log level: debug, info, warn, error")
		configPath            = flag.String("config", "config.json", "path to persisted config JSON")
		enableAverageMovement = flag.Bool("enableAverageMovement", false, "publish a single averaged [dx, dy] movement vector on .../movement")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", flag.Args())
		flag.Usage()
		return 2
	}
	visitedFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { visitedFlags[f.Name] = true })

	logging.Initialize(*logLevel)
	logging.Info().Msg("starting lidar2d-agent")

	cfg, err := lidarconfig.LoadConfig(*configPath)
	if err != nil {
		if apperrors.IsPersistence(err) {
			logging.Fatal().Err(err).Str("path", *configPath).Msg("failed to read config file")
			return 1
		}
		logging.Fatal().Err(err).Str("path", *configPath).Msg("config file is malformed or invalid")
		return 1
	}
	applyCLIOverrides(cfg, visitedFlags, *clusterEps, *clusterMinPoints, *clusterMaxClusterSize,
		*trackingMaxMatchDistance, *trackingTrackTimeout, *trackingAlpha, *trackingBeta, *trackingMinMatchCount)
	if err := cfg.Validate(); err != nil {
		logging.Error().Err(err).Msg("invalid configuration after applying CLI overrides")
		return 2
	}

	controller := lidarconfig.NewController(*configPath, cfg)

	client, err := bus.Dial(bus.Config{Host: *tetherHost, Username: *tetherUsername, Password: *tetherPassword})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to message bus")
		return 1
	}
	defer client.Close()

	publishInterval := time.Duration(*publishIntervalMs) * time.Millisecond
	orch := pipeline.New(controller, client, codec.JSONEncoder{}, publishInterval, *includeOutside, *enableAverageMovement)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		controller.RunPersistence(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()

	if err := wireSubscriptions(client, orch, orch.Registry(), controller); err != nil {
		logging.Fatal().Err(err).Msg("failed to subscribe to bus topics")
		return 1
	}

	if payload, err := jsonConfigSnapshot(controller); err == nil {
		if err := client.PublishConfig(payload); err != nil {
			logging.Warn().Err(err).Msg("failed to publish initial config snapshot")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel()
	waitWithTimeout(&wg, shutdownGrace)
	logging.Info().Msg("shutdown complete")
	return 0
}

func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logging.Warn().Msg("shutdown grace period exceeded, exiting anyway")
	}
}

// applyCLIOverrides layers explicitly-set flags onto a loaded config.
// Only flags the user actually passed (per visited) override the
// persisted value — an unset flag must not clobber a saved tuning
// parameter with its own zero-value default.
func applyCLIOverrides(cfg *lidarconfig.Config, visited map[string]bool, eps float64, minPoints, maxClusterSize int,
	maxMatchDistance float64, trackTimeout int, alpha, beta float64, minMatchCount int) {
	if visited["cluster.eps"] {
		cfg.Cluster.Eps = eps
	}
	if visited["cluster.minPoints"] {
		cfg.Cluster.MinPoints = minPoints
	}
	if visited["cluster.maxClusterSize"] {
		cfg.Cluster.MaxClusterSize = maxClusterSize
	}
	if visited["tracking.maxMatchDistance"] {
		cfg.Tracking.MaxMatchDistance = maxMatchDistance
	}
	if visited["tracking.trackTimeout"] {
		cfg.Tracking.TrackTimeout = trackTimeout
	}
	if visited["tracking.alpha"] {
		cfg.Tracking.Alpha = alpha
	}
	if visited["tracking.beta"] {
		cfg.Tracking.Beta = beta
	}
	if visited["tracking.minMatchCount"] {
		cfg.Tracking.MinMatchCount = minMatchCount
	}
}
