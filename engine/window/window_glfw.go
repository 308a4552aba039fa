package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	window *glfw.Window
}

// openPlatformWindow creates the GLFW window, wires its callbacks into w and records the
// actual framebuffer size.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func openPlatformWindow(w *engineWindow) error {
	// GLFW calls must stay on the thread that initialized it.
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// WebGPU owns presentation, so no OpenGL context is created.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(w.resizable))

	win, err := glfw.CreateWindow(int(w.framebuffer.Width), int(w.framebuffer.Height), w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	w.platform = &glfwWindow{window: win}

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetSizeLimits
	win.SetSizeLimits(
		sizeLimit(w.bounds.min.Width), sizeLimit(w.bounds.min.Height),
		sizeLimit(w.bounds.max.Width), sizeLimit(w.bounds.max.Height),
	)

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press || action == glfw.Repeat {
			w.keyDown(uint32(key))
		}
	})

	// The framebuffer size is in pixels and differs from the window size on high-DPI displays.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})

	fbWidth, fbHeight := win.GetFramebufferSize()
	w.framebuffer.Width, w.framebuffer.Height = uint32(fbWidth), uint32(fbHeight)
	return nil
}

// sizeLimit maps an unset size bound to glfw.DontCare.
func sizeLimit(v uint32) int {
	if v == 0 {
		return glfw.DontCare
	}
	return int(v)
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

// surfaceDescriptor builds the descriptor through the per-platform wgpuglfw bridge.
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (g *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(g.window)
}

func (g *glfwWindow) open() bool {
	return !g.window.ShouldClose()
}

func (g *glfwWindow) requestClose() {
	g.window.SetShouldClose(true)
}

func (g *glfwWindow) setTitle(title string) {
	g.window.SetTitle(title)
}

// pollEvents dispatches pending events. A minimized window has nothing to render, so it blocks
// until the next event arrives.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func (g *glfwWindow) pollEvents(block bool) {
	if block {
		glfw.WaitEvents()
		return
	}
	glfw.PollEvents()
}

// destroy destroys the window and terminates GLFW.
func (g *glfwWindow) destroy() {
	g.window.Destroy()
	glfw.Terminate()
}
