// Package pipeline wires ingest, cluster, roi, and track into the
// scan-driven orchestrator of §4.8: each incoming scan triggers
// ingest for its device, a full recluster over every device buffer,
// ROI projection, and a tracker update, followed by publication.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/cluster"
	"github.com/tether-systems/lidar2d-agent/internal/device"
	"github.com/tether-systems/lidar2d-agent/internal/ingest"
	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
	"github.com/tether-systems/lidar2d-agent/internal/logging"
	"github.com/tether-systems/lidar2d-agent/internal/roi"
	"github.com/tether-systems/lidar2d-agent/internal/track"
)

// Publisher is the outbound half of the bus — implemented by
// internal/bus.Client. Kept as an interface here so the pipeline can
// be exercised without a live broker.
type Publisher interface {
	PublishTrackedPoints(serial string, payload []byte) error
	PublishSmoothedTrackedPoints(serial string, payload []byte) error
	PublishClusters(serial string, payload []byte) error
	PublishMovement(serial string, payload []byte) error
	PublishDiagnostic(payload []byte) error
}

// Encoder renders pipeline outputs to wire payloads — implemented by
// internal/codec. An interface so tests can assert on raw values.
type Encoder interface {
	EncodeTrackedPoints(points []roi.ProjectedPoint) ([]byte, error)
	EncodeSmoothedTracks(tracks []track.Track) ([]byte, error)
	EncodeClusters(clusters []cluster.Cluster) ([]byte, error)
	EncodeMovement(dx, dy float64) ([]byte, error)
}

type scanMsg struct {
	samples []ingest.Sample
	now     time.Time
}

// frameSnapshot caches one processed frame's outputs so the periodic
// tick can republish them verbatim, without re-running any pipeline
// stage or advancing the tracker.
type frameSnapshot struct {
	serial    string
	clusters  []cluster.Cluster
	projected []roi.ProjectedPoint
	smoothed  []track.Track
}

// Orchestrator owns the per-device point buffers and the tracker, and
// drives the ingest -> cluster -> project -> track pipeline. It is the
// sole mutator of both, per §5's shared resource policy.
type Orchestrator struct {
	controller *lidarconfig.Controller
	registry   *device.Registry
	tracker    *track.Tracker
	publisher  Publisher
	encoder    Encoder

	buffers map[string]ingest.DevicePointBuffer

	mu      sync.Mutex
	pending map[string]scanMsg
	wake    chan struct{}

	publishInterval time.Duration
	includeOutside  bool
	enableMovement  bool

	lastFrameTime time.Time
	lastFrame     frameSnapshot
	haveFrame     bool
}

// New constructs an Orchestrator. publishInterval drives the periodic
// republish tick (§4.8); includeOutside mirrors the
// --perspectiveTransform.includeOutside flag; enableMovement mirrors
// --enableAverageMovement (§6).
func New(controller *lidarconfig.Controller, publisher Publisher, encoder Encoder, publishInterval time.Duration, includeOutside, enableMovement bool) *Orchestrator {
	return &Orchestrator{
		controller:      controller,
		registry:        device.NewRegistry(),
		tracker:         track.NewTracker(),
		publisher:       publisher,
		encoder:         encoder,
		buffers:         make(map[string]ingest.DevicePointBuffer),
		pending:         make(map[string]scanMsg),
		wake:            make(chan struct{}, 1),
		publishInterval: publishInterval,
		includeOutside:  includeOutside,
		enableMovement:  enableMovement,
	}
}

// Registry returns the orchestrator's device registry, so the bus
// layer can route requestAutoMask commands to the same instance that
// ObserveFrame feeds during normal scan processing.
func (o *Orchestrator) Registry() *device.Registry {
	return o.registry
}

// SubmitScan enqueues samples for serial, overwriting any
// not-yet-processed scan for that same serial — the drop-oldest-per-
// serial backpressure policy of §5. Safe to call from the bus
// goroutine concurrently with Run.
func (o *Orchestrator) SubmitScan(serial string, samples []ingest.Sample) {
	o.mu.Lock()
	o.pending[serial] = scanMsg{samples: samples, now: time.Now()}
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Run is the single logical pipeline goroutine: it drains pending
// scans as they arrive and re-emits the latest tracking output on
// publishInterval ticks, until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
			o.drainPending()
		case <-ticker.C:
			o.republishLatest()
		}
	}
}

// drainPending pops every currently-pending scan and processes each
// in turn. Cross-device ordering is unspecified; within a device only
// the latest scan survives, per §5.
func (o *Orchestrator) drainPending() {
	o.mu.Lock()
	batch := o.pending
	o.pending = make(map[string]scanMsg)
	o.mu.Unlock()

	for serial, msg := range batch {
		o.processScan(serial, msg)
	}
}

// processScan runs ingest for serial only, then reclusters over every
// device buffer, projects through the ROI, and steps the tracker — the
// "update incoming device only; recluster always" policy of §4.8.
func (o *Orchestrator) processScan(serial string, msg scanMsg) {
	cfg := o.controller.Snapshot()

	dc, ok := cfg.Devices[serial]
	if !ok {
		next, changed := device.EnsureDevice(cfg, serial)
		if changed {
			if err := o.controller.SaveConfig(next); err != nil {
				logging.Warn().Err(err).Str("serial", serial).Msg("failed to persist auto-registered device")
			}
			cfg = next
		}
		dc = cfg.Devices[serial]
	}

	o.feedAutoMask(serial, msg.samples)

	buf := ingest.Ingest(serial, msg.samples, dc, msg.now)
	o.buffers[serial] = buf

	allPoints := make([]cluster.Point, 0)
	for _, b := range o.buffers {
		allPoints = append(allPoints, b.Points...)
	}

	clusters := cluster.DBSCAN(allPoints, cluster.Params{
		Eps:            cfg.Cluster.Eps,
		MinPoints:      cfg.Cluster.MinPoints,
		MaxClusterSize: cfg.Cluster.MaxClusterSize,
		MinClusterSize: cfg.Cluster.MinClusterSize,
	})

	margin := 0.0
	if cfg.ROI != nil {
		margin = cfg.ROI.Margin
	}
	projected := roi.Project(clusters, o.controller.Homography(), margin, o.includeOutside)

	dt := o.frameDT(msg.now)
	smoothed := o.tracker.Step(projected, dt, track.Params{
		MaxMatchDistance: cfg.Tracking.MaxMatchDistance,
		TrackTimeout:     cfg.Tracking.TrackTimeout,
		Alpha:            cfg.Tracking.Alpha,
		Beta:             cfg.Tracking.Beta,
		MinMatchCount:    cfg.Tracking.MinMatchCount,
	})

	o.lastFrame = frameSnapshot{serial: serial, clusters: clusters, projected: projected, smoothed: smoothed}
	o.haveFrame = true
	o.publish(serial, clusters, projected, smoothed)
}

// feedAutoMask forwards raw samples to any in-flight auto-mask session
// for serial (§4.2) and installs the emitted mask into the device's
// config once the session completes.
func (o *Orchestrator) feedAutoMask(serial string, samples []ingest.Sample) {
	raw := make([]device.RawSample, len(samples))
	for i, s := range samples {
		raw[i] = device.RawSample{AngleRad: s.AngleRad, Distance: s.Distance}
	}
	mask, done := o.registry.ObserveFrame(serial, raw)
	if !done {
		return
	}

	cfg := o.controller.Snapshot()
	next, changed := device.EnsureDevice(cfg, serial)
	if !changed {
		next = cfg.Clone()
	}
	dc := next.Devices[serial]
	dc.Mask = mask
	next.Devices[serial] = dc
	if err := o.controller.SaveConfig(next); err != nil {
		logging.Warn().Err(err).Str("serial", serial).Msg("failed to persist auto-sampled mask")
	}
}

// frameDT returns the wall-clock interval since the previous processed
// frame, falling back to the publish interval for the very first
// frame; it is the default dt mode of §4.6.
func (o *Orchestrator) frameDT(now time.Time) float64 {
	dt := o.publishInterval.Seconds()
	if !o.lastFrameTime.IsZero() {
		dt = now.Sub(o.lastFrameTime).Seconds()
	}
	o.lastFrameTime = now
	if dt <= 0 {
		dt = o.publishInterval.Seconds()
	}
	return dt
}

// republishLatest re-emits the most recently processed frame's
// already-computed outputs — it must not advance the tracker or rerun
// ingest/cluster/project, since the tick runs far more often than scans
// may arrive and stepping the tracker here would decouple the
// frame-denominated trackTimeout from actual scan cadence (§4.8: "this
// tick does not re-run clustering"). A no-op until the first frame has
// been processed.
func (o *Orchestrator) republishLatest() {
	if !o.haveFrame {
		return
	}
	o.publish(o.lastFrame.serial, o.lastFrame.clusters, o.lastFrame.projected, o.lastFrame.smoothed)
}

func (o *Orchestrator) publish(serial string, clusters []cluster.Cluster, projected []roi.ProjectedPoint, smoothed []track.Track) {
	if payload, err := o.encoder.EncodeClusters(clusters); err != nil {
		logging.Warn().Err(err).Msg("failed to encode clusters")
	} else if err := o.publisher.PublishClusters(serial, payload); err != nil {
		logPublishFailure("clusters", err)
	}

	if payload, err := o.encoder.EncodeTrackedPoints(projected); err != nil {
		logging.Warn().Err(err).Msg("failed to encode tracked points")
	} else if err := o.publisher.PublishTrackedPoints(serial, payload); err != nil {
		logPublishFailure("trackedPoints", err)
	}

	if payload, err := o.encoder.EncodeSmoothedTracks(smoothed); err != nil {
		logging.Warn().Err(err).Msg("failed to encode smoothed tracks")
	} else if err := o.publisher.PublishSmoothedTrackedPoints(serial, payload); err != nil {
		logPublishFailure("smoothedTrackedPoints", err)
	}

	if o.enableMovement && len(smoothed) > 0 {
		var sumX, sumY float64
		for _, t := range smoothed {
			sumX += t.Velocity.X
			sumY += t.Velocity.Y
		}
		n := float64(len(smoothed))
		if payload, err := o.encoder.EncodeMovement(sumX/n, sumY/n); err != nil {
			logging.Warn().Err(err).Msg("failed to encode movement")
		} else if err := o.publisher.PublishMovement(serial, payload); err != nil {
			logPublishFailure("movement", err)
		}
	}
}

// logPublishFailure logs a publish failure at a severity matched to its
// kind: a transient bus error (disconnect, publish timeout) only needs
// a warning, since the bus reconnects and the next frame will retry;
// anything else (an encoder bug surfacing as a publish-layer error, for
// instance) is logged at error.
func logPublishFailure(topic string, err error) {
	if apperrors.IsTransientIO(err) {
		logging.Warn().Err(err).Str("topic", topic).Msg("publish failed, bus will retry")
	} else {
		logging.Error().Err(err).Str("topic", topic).Msg("publish failed")
	}
}

// ReportError publishes a diagnostic event for an error kind the
// operator should see on the bus (§7): a rejected config update
// (degenerate geometry) or a dropped malformed payload. Other error
// kinds are not diagnostic-worthy and are ignored. Errors publishing
// the diagnostic itself are logged, not retried — diagnostics are
// best-effort.
func (o *Orchestrator) ReportError(err error) {
	if !apperrors.IsDegenerateGeometry(err) && !apperrors.IsMalformedPayload(err) {
		return
	}
	if pubErr := o.publisher.PublishDiagnostic([]byte(err.Error())); pubErr != nil {
		logging.Warn().Err(pubErr).Msg("failed to publish diagnostic")
	}
}
