package pipeline

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultFPSWindow is how long frames are counted before a rate is reported.
const DefaultFPSWindow = time.Second

// FrameRateMeter measures frames per second over fixed windows.
type FrameRateMeter struct {
	clk         clock.Clock
	window      time.Duration
	count       uint
	windowStart time.Time
}

// NewFrameRateMeter returns a meter whose first window starts now.
func NewFrameRateMeter(clk clock.Clock, window time.Duration) *FrameRateMeter {
	if window <= 0 {
		window = DefaultFPSWindow
	}
	return &FrameRateMeter{clk: clk, window: window, windowStart: clk.Now()}
}

// Tick counts one frame. Once at least a window has elapsed it returns the rate over that window
// and starts a new one; otherwise ok is false. A clock that went backwards never closes a window.
func (m *FrameRateMeter) Tick() (fps float64, ok bool) {
	m.count++
	now := m.clk.Now()
	elapsed := now.Sub(m.windowStart)
	if elapsed < m.window {
		return 0, false
	}
	fps = float64(m.count) / elapsed.Seconds()
	m.count = 0
	m.windowStart = now
	return fps, true
}
