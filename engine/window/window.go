// Package window provides the GLFW host window the renderer presents into. It reports
// framebuffer-size changes in pixels and produces the platform surface descriptor.
package window

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-raysampler/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the host window the ray sampler presents into.
// It satisfies renderer.SurfaceTarget and engine.Window.
type Window interface {
	// SetUpdateCallback sets the function called once per message loop iteration, after events
	// have been dispatched.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes. A minimized
	// window reports 0x0.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press and repeat events. Escape closes the
	// window and is not forwarded.
	//
	// Parameters:
	//   - callback: function receiving the key code (see the common.Key* constants)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetTitle changes the title bar text.
	SetTitle(title string)

	// SurfaceDescriptor returns the platform surface descriptor (HWND, Xlib, Wayland or Metal
	// layer) built by the wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Minimized reports whether the framebuffer currently has no area.
	Minimized() bool

	// Close destroys the window. Closing an already closed window is a no-op.
	//
	// Returns:
	//   - error: an error if the window was never created
	Close() error

	// ProcessMessages runs the message loop on the calling thread until the window closes.
	// While minimized it blocks on events instead of spinning.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// sizeBounds holds optional framebuffer size limits. Zero leaves a bound unset.
type sizeBounds struct {
	min common.Extent2D
	max common.Extent2D
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title     string
	resizable bool
	bounds    sizeBounds

	// framebuffer is the current framebuffer size in pixels.
	framebuffer common.Extent2D

	// platform holds the GLFW state, nil until the window is created and after it is closed.
	platform *glfwWindow

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var _ Window = &engineWindow{}

// NewWindow creates the window and shows it. It must be called from the main goroutine,
// which then owns the window for its lifetime.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
func NewWindow(options ...WindowBuilderOption) Window {
	w := newEngineWindow(options...)
	if err := openPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

// newEngineWindow applies the defaults and options without touching the platform.
func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:       "oxy raysampler",
		resizable:   true,
		bounds:      sizeBounds{min: common.Extent2D{Width: 160, Height: 120}},
		framebuffer: common.Extent2D{Width: 1280, Height: 720},
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if w.platform != nil {
		w.platform.setTitle(title)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.platform == nil {
		return nil
	}
	return w.platform.surfaceDescriptor()
}

func (w *engineWindow) IsRunning() bool {
	return w.platform != nil && w.platform.open()
}

func (w *engineWindow) Minimized() bool {
	return w.framebuffer.Empty()
}

func (w *engineWindow) Close() error {
	if w.platform == nil {
		return fmt.Errorf("window %q is not open", w.title)
	}
	w.platform.destroy()
	w.platform = nil
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		w.platform.pollEvents(w.Minimized())
		if !w.IsRunning() {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
}

func (w *engineWindow) Width() int {
	return int(w.framebuffer.Width)
}

func (w *engineWindow) Height() int {
	return int(w.framebuffer.Height)
}

// resized records a new framebuffer size and forwards it to the resize callback.
func (w *engineWindow) resized(width, height int) {
	w.framebuffer = common.NewExtent2D(width, height)
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

// keyDown forwards a key press unless it closes the window.
func (w *engineWindow) keyDown(keyCode uint32) {
	if keyCode == common.KeyEsc {
		w.platform.requestClose()
		return
	}
	if w.onKeyDown != nil {
		w.onKeyDown(keyCode)
	}
}
