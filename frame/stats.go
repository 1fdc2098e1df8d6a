package frame

import (
	"time"

	"github.com/loov/hrtime"
	"golang.org/x/exp/slog"
)

// DefaultStatsInterval is how often frame rates are reported.
const DefaultStatsInterval = 5 * time.Second

// Stats counts presented frames and reports the frame rate once per interval.
type Stats struct {
	logger   *slog.Logger
	now      func() time.Duration
	interval time.Duration

	windowStart  time.Duration
	windowFrames int
	total        int
}

func NewStats(logger *slog.Logger, interval time.Duration) *Stats {
	return newStats(logger, interval, hrtime.Now)
}

func newStats(logger *slog.Logger, interval time.Duration, now func() time.Duration) *Stats {
	return &Stats{
		logger:      logger,
		now:         now,
		interval:    interval,
		windowStart: now(),
	}
}

// Frame records one presented frame. When an interval has elapsed it returns
// the frame rate over that interval and true.
func (s *Stats) Frame() (float64, bool) {
	s.total++
	s.windowFrames++

	elapsed := s.now() - s.windowStart
	if elapsed < s.interval {
		return 0, false
	}

	fps := float64(s.windowFrames) / elapsed.Seconds()
	s.logger.Debug("frame statistics",
		slog.Float64("fps", fps),
		slog.Int("frames", s.windowFrames),
		slog.Duration("elapsed", elapsed),
		slog.Int("total", s.total))

	s.windowStart += elapsed
	s.windowFrames = 0
	return fps, true
}

// Total is the number of frames recorded since creation.
func (s *Stats) Total() int {
	return s.total
}
