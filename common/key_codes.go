package common

// Key codes delivered to window key callbacks.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace = 32  // Spacebar (ASCII)
	KeyV     = 86  // V key (ASCII)
	KeyEsc   = 256 // Escape key (GLFW)
)
