package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"hubmedia/internal/cache"
	"hubmedia/internal/featureflags"
	"hubmedia/internal/models"
	"hubmedia/internal/observability"
	"hubmedia/internal/repository"
)

const (
	// rampWindow is the opening period during which audiences grow faster.
	rampWindow = time.Minute
	rampBonus  = 5

	// DefaultTickInterval is the viewer simulation period.
	DefaultTickInterval = 3 * time.Second
)

// ViewerService maintains the simulated audience size of live streams.
type ViewerService struct {
	streams repository.StreamRepository
	cache   *cache.Store
	events  EventPublisher
	now     func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewViewerService returns a new ViewerService.
func NewViewerService(streams repository.StreamRepository, statusCache *cache.Store, events EventPublisher) *ViewerService {
	return &ViewerService{
		streams: streams,
		cache:   statusCache,
		events:  publisherOrNop(events),
		now:     utcNow,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// delta returns a change in [-3, 6], plus the ramp bonus for young streams.
func (s *ViewerService) delta(age time.Duration) int {
	s.mu.Lock()
	d := s.rng.Intn(10) - 3
	s.mu.Unlock()
	if age < rampWindow {
		d += rampBonus
	}
	return d
}

// Tick moves the viewer count of a live stream and returns the new value.
// Unknown and ended streams are left alone and report 0.
func (s *ViewerService) Tick(ctx context.Context, streamID uint) (count int, err error) {
	ctx, span := startSpan(ctx, "ViewerService", "Tick", streamID)
	defer func() { finishSpan(ctx, span, err) }()

	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			observability.ViewerTicks.WithLabelValues("skipped").Inc()
			return 0, nil
		}
		observability.ViewerTicks.WithLabelValues("error").Inc()
		return 0, models.NewStoreError(err)
	}
	if !stream.IsLive {
		observability.ViewerTicks.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	count, live, err := s.streams.ApplyViewerDelta(ctx, streamID, s.delta(stream.Duration(s.now())))
	if err != nil {
		observability.ViewerTicks.WithLabelValues("error").Inc()
		return 0, models.NewStoreError(err)
	}
	if !live {
		// Ended between the read and the update.
		observability.ViewerTicks.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	observability.ViewerTicks.WithLabelValues("applied").Inc()
	s.cache.InvalidateStream(ctx, streamID)
	emit(ctx, s.events, models.StreamEvent{
		Type:     models.EventViewerCount,
		StreamID: streamID,
		Status:   &models.StreamStatus{IsLive: true, ViewerCount: count},
	})
	return count, nil
}

// GetCount returns the current viewer count, 0 for unknown or ended streams.
func (s *ViewerService) GetCount(ctx context.Context, streamID uint) (int, error) {
	stream, err := s.streams.GetByID(ctx, streamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, nil
		}
		return 0, models.NewStoreError(err)
	}
	return stream.Status().ViewerCount, nil
}

// ViewerSimulator ticks every live stream on a fixed interval.
type ViewerSimulator struct {
	viewers  *ViewerService
	streams  repository.StreamRepository
	flags    *featureflags.Manager
	interval time.Duration
}

// NewViewerSimulator returns a simulator. A nil flags manager means always on.
func NewViewerSimulator(
	viewers *ViewerService, streams repository.StreamRepository, flags *featureflags.Manager, interval time.Duration,
) *ViewerSimulator {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &ViewerSimulator{viewers: viewers, streams: streams, flags: flags, interval: interval}
}

// Run ticks until ctx is cancelled. It always returns nil so it can sit in an errgroup.
func (v *ViewerSimulator) Run(ctx context.Context) error {
	defer observability.RecoverAndReport(ctx, "viewer_simulator")

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "viewer simulator started", slog.Duration("interval", v.interval))
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "viewer simulator stopped")
			return nil
		case <-ticker.C:
			if v.flags != nil && !v.flags.On(featureflags.ViewerSimulation) {
				continue
			}
			v.TickAll(ctx)
		}
	}
}

// TickAll ticks every live stream once and returns how many were updated.
func (v *ViewerSimulator) TickAll(ctx context.Context) int {
	ids, err := v.streams.ListLiveIDs(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list live streams", slog.String("error", err.Error()))
		return 0
	}

	ticked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := v.viewers.Tick(ctx, id); err != nil {
			slog.WarnContext(ctx, "viewer tick failed",
				slog.Uint64("stream_id", uint64(id)),
				slog.String("error", err.Error()),
			)
			continue
		}
		ticked++
	}
	return ticked
}
