// Package engine runs the ray sampler host loop: window events drive Renderer.HandleResize and
// every message loop iteration renders one frame with a millisecond timestamp.
package engine

import (
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-raysampler/engine/logging"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/profiler"
	"github.com/Carmen-Shannon/oxy-raysampler/engine/renderer"
)

// Window is the part of window.Window the engine drives. Rendering happens on the goroutine that
// runs ProcessMessages, so the renderer is only ever touched from one thread.
type Window interface {
	SetUpdateCallback(callback func())
	SetResizeCallback(callback func(width, height int))
	ProcessMessages()
	IsRunning() bool
	Close() error
}

// engine implements the Engine interface.
// Coordinates the tick goroutine with the window thread that renders.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	// now is the clock frame timestamps and deltas are taken from.
	now        func() time.Time
	start      time.Time
	lastRender time.Time

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the ray sampler host.
// It owns the frame loop and forwards window events to the renderer.
type Engine interface {
	// Window returns the window the engine renders into.
	//
	// Returns:
	//   - Window: the window instance
	Window() Window

	// Renderer returns the renderer driven every frame.
	//
	// Returns:
	//   - renderer.Renderer: the renderer, nil if none was configured
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate on its own goroutine.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame, on the window thread.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick goroutine and the window message loop (blocks until the window closes).
	Run()

	// Quit signals the engine to stop. The window is closed on its own thread at the next
	// loop iteration. Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, profiling, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
		now:              time.Now,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithClock(e.now))
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.HandleResize(width, height)
			}
		})
		e.window.SetUpdateCallback(e.frame)
	}

	return e
}

func (e *engine) Window() Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() {
	e.mu.Lock()
	e.running = true
	e.start = e.now()
	e.lastRender = e.start
	e.mu.Unlock()

	e.wg.Add(1)
	go e.handleEngine()
	if e.window != nil {
		e.window.ProcessMessages()
	}
	e.signalQuit()
	e.wg.Wait()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		close(e.quitChannel)
	})
}

// quitting reports whether Quit has been called.
func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	e.mu.Lock()
	rate := e.engineTickRate
	e.mu.Unlock()
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.mu.Lock()
			e.engineTickRate = newRate
			e.mu.Unlock()
		}
	}
}

// frame renders one frame. It runs as the window's update callback, so it shares the thread
// that delivers resize events. A panic quits the engine instead of crashing the process.
func (e *engine) frame() {
	defer func() {
		if r := recover(); r != nil {
			logging.Logger().Warn("render frame recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	if e.quitting() {
		if err := e.window.Close(); err != nil {
			logging.Logger().Warn("window close failed", "error", err)
		}
		return
	}

	now := e.now()
	elapsed := now.Sub(e.lastRender)
	if e.renderFrameLimit > 0 && elapsed < e.renderFrameLimit {
		return
	}
	e.lastRender = now
	dt := float32(elapsed.Seconds())

	if e.renderer != nil {
		if err := e.renderer.Update(Timestamp(e.start, now)); err != nil {
			logging.Logger().Debug("frame dropped", "error", err)
		}
	}

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick()
	}
}

// Timestamp converts a point in time into milliseconds since start, the unit the renderer seeds
// the sampling process with.
//
// Parameters:
//   - start: the time the engine started
//   - now: the time of the frame
//
// Returns:
//   - float64: the elapsed milliseconds
func Timestamp(start, now time.Time) float64 {
	return float64(now.Sub(start)) / float64(time.Millisecond)
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickDuration(fps)

	e.mu.Lock()
	running := e.running
	if !running {
		e.engineTickRate = newRate
	}
	e.mu.Unlock()
	if !running {
		return
	}

	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// tickDuration converts a tick rate into the ticker period. Rates <= 0 fall back to 60Hz and the
// period is clamped to [1ns, math.MaxInt64] so fractional and very high rates stay valid for a ticker.
func tickDuration(fps float64) time.Duration {
	if fps <= 0 || math.IsNaN(fps) {
		fps = 60
	}
	d := float64(time.Second) / fps
	switch {
	case d < 1:
		return 1
	case d >= math.MaxInt64:
		return math.MaxInt64
	}
	return time.Duration(d)
}

// frameDuration converts a frame rate cap into the minimum frame duration, 0 for uncapped.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
