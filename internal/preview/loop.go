package preview

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/AreaStream/internal/logger"
	"github.com/bryanchriswhite/AreaStream/internal/scale"
)

// Stats are the loop's counters
type Stats struct {
	Presented uint64     `json:"presented"`
	Skipped   uint64     `json:"skipped"`
	Native    scale.Size `json:"native"`
	Mode      string     `json:"scale_mode"`
}

// Loop pulls frames from a Source and presents them on a Sink
type Loop struct {
	source Source
	sink   Sink

	mu     sync.Mutex
	scaler scale.Scaler
	dirty  bool
	native scale.Size

	presented atomic.Uint64
	skipped   atomic.Uint64

	lastPullErr string
}

// NewLoop returns a loop that is not running yet
func NewLoop(source Source, sink Sink, mode scale.Mode) *Loop {
	return &Loop{
		source: source,
		sink:   sink,
		scaler: scale.Scaler{Mode: mode},
	}
}

// SetScaleMode changes the scaling policy from the next tick on
func (l *Loop) SetScaleMode(m scale.Mode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scaler.Mode != m {
		l.scaler.Mode = m
		l.dirty = true
	}
}

// ScaleMode returns the current scaling policy
func (l *Loop) ScaleMode() scale.Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scaler.Mode
}

// Stats returns the loop counters
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	native, mode := l.native, l.scaler.Mode
	l.mu.Unlock()
	return Stats{
		Presented: l.presented.Load(),
		Skipped:   l.skipped.Load(),
		Native:    native,
		Mode:      mode.String(),
	}
}

// Run ticks until ctx is done or the sink's surface goes away. A vanished
// surface ends the loop with a nil error.
func (l *Loop) Run(ctx context.Context) error {
	log := logger.WithComponent("loop")
	log.Info().
		Dur("interval", l.source.CaptureInterval()).
		Str("scale_mode", l.ScaleMode().String()).
		Msg("Capture loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if err := l.tick(); errors.Is(err, ErrSurfaceGone) {
			log.Info().
				Uint64("presented", l.presented.Load()).
				Uint64("skipped", l.skipped.Load()).
				Msg("Preview surface gone, stopping capture loop")
			return nil
		}

		wait := l.source.CaptureInterval() - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tick pulls and presents one frame. Only ErrSurfaceGone is returned.
func (l *Loop) tick() error {
	log := logger.WithComponent("loop")

	f, err := l.source.PullFrame()
	if err != nil {
		l.skipped.Add(1)
		// Pull errors repeat every tick while a backend is unavailable
		if msg := err.Error(); msg != l.lastPullErr {
			l.lastPullErr = msg
			log.Warn().Err(err).Msg("Failed to pull frame")
		}
		return nil
	}
	l.lastPullErr = ""

	if f == nil || f.Image == nil {
		l.skipped.Add(1)
		return nil
	}

	p := f.Size()
	native := scale.Size{W: p.X, H: p.Y}

	l.mu.Lock()
	scaler := l.scaler
	changed := l.dirty || native != l.native
	l.dirty = false
	l.native = native
	l.mu.Unlock()

	if changed {
		log.Debug().
			Str("native", native.String()).
			Str("scale_mode", scaler.Mode.String()).
			Msg("Frame size changed")
		if scaler.Mode.Fixed() {
			if err := l.sink.Resize(scaler.Size(native, scale.Size{})); err != nil {
				if errors.Is(err, ErrSurfaceGone) {
					return err
				}
				log.Warn().Err(err).Msg("Failed to resize preview")
			}
		}
	}

	size := scaler.Size(native, l.sink.Viewport())
	if err := l.sink.Present(f, size); err != nil {
		if errors.Is(err, ErrSurfaceGone) {
			return err
		}
		l.skipped.Add(1)
		log.Debug().Err(err).Msg("Failed to present frame")
		return nil
	}

	l.presented.Add(1)
	return nil
}
