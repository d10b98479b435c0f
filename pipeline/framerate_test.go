package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestFrameRateMeter(t *testing.T) {
	clk := clock.NewMock()
	m := NewFrameRateMeter(clk, time.Second)

	start := clk.Now()
	emitted := 0
	for i := 1; i <= 30; i++ {
		clk.Set(start.Add(time.Duration(i) * time.Second / 30))
		fps, ok := m.Tick()
		if i < 30 {
			test.That(t, ok, test.ShouldBeFalse)
			continue
		}
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, fps, test.ShouldEqual, 30.0)
		emitted++
	}
	test.That(t, emitted, test.ShouldEqual, 1)

	// the next window starts from the emitting tick
	clk.Add(500 * time.Millisecond)
	_, ok := m.Tick()
	test.That(t, ok, test.ShouldBeFalse)
	clk.Add(1500 * time.Millisecond)
	fps, ok := m.Tick()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fps, test.ShouldEqual, 1.0)
}

func TestFrameRateMeterClockBackwards(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	m := NewFrameRateMeter(clk, time.Second)
	clk.Set(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC))
	for i := 0; i < 100; i++ {
		_, ok := m.Tick()
		test.That(t, ok, test.ShouldBeFalse)
	}
	clk.Set(time.Date(2024, 1, 1, 12, 0, 2, 0, time.UTC))
	fps, ok := m.Tick()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, fps, test.ShouldEqual, 101.0/2)
}

func TestFrameRateMeterDefaultWindow(t *testing.T) {
	m := NewFrameRateMeter(clock.NewMock(), 0)
	test.That(t, m.window, test.ShouldEqual, DefaultFPSWindow)
}

func TestFrameRateMeterShortWindow(t *testing.T) {
	clk := clock.NewMock()
	m := NewFrameRateMeter(clk, 500*time.Microsecond)
	clk.Add(500 * time.Microsecond)
	fps, ok := m.Tick()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.IsInf(fps, 0), test.ShouldBeFalse)
	test.That(t, fps, test.ShouldAlmostEqual, 2000.0, 1e-6)
}
