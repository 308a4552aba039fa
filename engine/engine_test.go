package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/profiler"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer"
)

type fakeClock struct {
	t    time.Time
	step time.Duration
}

// now returns the current time and advances by step.
func (c *fakeClock) now() time.Time {
	t := c.t
	c.t = c.t.Add(c.step)
	return t
}

type fakeWindow struct {
	frames   int
	during   func()
	running  bool
	closed   int
	update   func()
	onResize func(width, height int)
}

func (w *fakeWindow) SetUpdateCallback(callback func())                  { w.update = callback }
func (w *fakeWindow) SetResizeCallback(callback func(width, height int)) { w.onResize = callback }
func (w *fakeWindow) IsRunning() bool                                    { return w.running }

func (w *fakeWindow) Close() error {
	w.closed++
	w.running = false
	return nil
}

func (w *fakeWindow) ProcessMessages() {
	w.running = true
	if w.during != nil {
		w.during()
	}
	for i := 0; i < w.frames && w.running; i++ {
		w.update()
	}
}

// fakeRenderer records the calls the engine makes. Methods the engine does not use panic
// through the nil embedded interface.
type fakeRenderer struct {
	renderer.Renderer
	timestamps []float64
	resizes    [][2]int
	err        error
}

func (r *fakeRenderer) HandleResize(width, height int) {
	r.resizes = append(r.resizes, [2]int{width, height})
}

func (r *fakeRenderer) Update(timeStamp float64) error {
	r.timestamps = append(r.timestamps, timeStamp)
	return r.err
}

func equalTimestamps(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRunRendersEachFrame(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0), step: 16 * time.Millisecond}
	win := &fakeWindow{frames: 3}
	r := &fakeRenderer{}
	var deltas []float32

	e := NewEngine(WithWindow(win), WithRenderer(r), WithClock(clock.now))
	e.SetRenderCallback(func(dt float32) { deltas = append(deltas, dt) })
	e.Run()

	if want := []float64{16, 32, 48}; !equalTimestamps(r.timestamps, want) {
		t.Errorf("timestamps = %v, want %v", r.timestamps, want)
	}
	if len(deltas) != 3 || deltas[0] != float32(0.016) {
		t.Errorf("render deltas = %v", deltas)
	}
	if e.Window() != win || e.Renderer() != r {
		t.Error("accessors do not return the configured window and renderer")
	}
}

func TestResizeForwardedToRenderer(t *testing.T) {
	win := &fakeWindow{}
	r := &fakeRenderer{}
	NewEngine(WithWindow(win), WithRenderer(r))

	win.onResize(640, 480)
	win.onResize(0, 0)

	if len(r.resizes) != 2 || r.resizes[0] != [2]int{640, 480} || r.resizes[1] != [2]int{0, 0} {
		t.Errorf("resizes = %v", r.resizes)
	}
}

func TestRenderFrameLimit(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 5 * time.Millisecond}
	win := &fakeWindow{frames: 4}
	r := &fakeRenderer{}

	NewEngine(WithWindow(win), WithRenderer(r), WithClock(clock.now), WithRenderFrameLimit(100)).Run()

	// Frames land every 5ms against a 10ms cap, so every other one renders.
	if want := []float64{10, 20}; !equalTimestamps(r.timestamps, want) {
		t.Errorf("timestamps = %v, want %v", r.timestamps, want)
	}
}

func TestUpdateErrorKeepsRunning(t *testing.T) {
	win := &fakeWindow{frames: 3}
	r := &fakeRenderer{err: renderer.ErrSurfaceTexture}

	NewEngine(WithWindow(win), WithRenderer(r)).Run()

	if len(r.timestamps) != 3 {
		t.Errorf("Update called %d times, want 3", len(r.timestamps))
	}
	if win.closed != 0 {
		t.Error("a failed frame closed the window")
	}
}

func TestQuitClosesWindow(t *testing.T) {
	tests := []struct {
		name        string
		callback    func(e Engine, frame int)
		wantUpdates int
	}{
		{"quit", func(e Engine, frame int) {
			if frame == 2 {
				e.Quit()
				e.Quit()
			}
		}, 2},
		{"panic", func(e Engine, frame int) {
			if frame == 1 {
				panic(errors.New("boom"))
			}
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := &fakeWindow{frames: 5}
			r := &fakeRenderer{}
			e := NewEngine(WithWindow(win), WithRenderer(r))
			frame := 0
			e.SetRenderCallback(func(float32) {
				frame++
				tt.callback(e, frame)
			})

			e.Run()

			if len(r.timestamps) != tt.wantUpdates {
				t.Errorf("Update called %d times, want %d", len(r.timestamps), tt.wantUpdates)
			}
			if win.closed != 1 {
				t.Errorf("window closed %d times, want 1", win.closed)
			}
		})
	}
}

func TestTickCallback(t *testing.T) {
	ticks := make(chan float32, 16)
	win := &fakeWindow{}
	win.during = func() {
		for i := 0; i < 3; i++ {
			select {
			case <-ticks:
			case <-time.After(5 * time.Second):
				t.Error("tick callback not called")
				return
			}
		}
	}

	e := NewEngine(WithWindow(win), WithTickRate(1000))
	e.SetTickCallback(func(dt float32) {
		select {
		case ticks <- dt:
		default:
		}
	})
	e.Run()
}

func TestTickDuration(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{0, time.Second / 60},
		{-5, time.Second / 60},
		{60, time.Second / 60},
		{0.5, 2 * time.Second},
		{0.25, 4 * time.Second},
		{1e12, 1},
		{1e-12, math.MaxInt64},
	}
	for _, tt := range tests {
		if got := tickDuration(tt.fps); got != tt.want {
			t.Errorf("tickDuration(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestFractionalTickRate(t *testing.T) {
	e := NewEngine(WithTickRate(0.5)).(*engine)
	if e.engineTickRate != 2*time.Second {
		t.Errorf("WithTickRate(0.5) period = %v, want 2s", e.engineTickRate)
	}
	e.SetTickRate(0.25)
	if e.engineTickRate != 4*time.Second {
		t.Errorf("SetTickRate(0.25) period = %v, want 4s", e.engineTickRate)
	}
}

func TestWithProfiler(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Second}
	p := profiler.NewProfiler(profiler.WithClock(clock.now))
	win := &fakeWindow{frames: 3}

	NewEngine(WithWindow(win), WithRenderer(&fakeRenderer{}), WithProfiler(p), WithProfiling(true)).Run()

	if got := p.FPS(); got != 1 {
		t.Errorf("supplied profiler FPS = %v, want 1", got)
	}
}

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{0, 0},
		{-30, 0},
		{100, 10 * time.Millisecond},
		{1, time.Second},
	}
	for _, tt := range tests {
		if got := frameDuration(tt.fps); got != tt.want {
			t.Errorf("frameDuration(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	start := time.Unix(50, 0)
	if got := Timestamp(start, start.Add(1500*time.Microsecond)); got != 1.5 {
		t.Errorf("Timestamp = %v, want 1.5", got)
	}
	if got := Timestamp(start, start); got != 0 {
		t.Errorf("Timestamp at start = %v, want 0", got)
	}
}
