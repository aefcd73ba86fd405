// Package evasion detects attached debuggers and decides how the engine
// reacts. Detection is advisory: the VM consults it at bootstrap through a
// guard callback and applies whichever response the profile selects.
package evasion

import (
	"os"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// Response is the action taken when a debugger is found.
type Response func()

// Exit terminates the process immediately.
func Exit() { os.Exit(1) }

// Report surfaces the detection through the shared error hook and continues.
func Report() {
	core.ReportError(core.CodeDebuggerDetected, "evasion: debugger attached")
}

// Nothing ignores the detection. Useful while developing under a debugger.
func Nothing() {}

// DebuggerPresent reports whether a debugger is attached to this process,
// using the cheapest reliable check the platform offers. Platforms without
// a check report false; a protected program must not crash just because
// detection is unavailable.
func DebuggerPresent() bool {
	return debuggerPresent()
}
