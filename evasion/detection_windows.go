//go:build windows

package evasion

import "golang.org/x/sys/windows"

var (
	kernel32          = windows.NewLazySystemDLL("kernel32.dll")
	isDebuggerPresent = kernel32.NewProc("IsDebuggerPresent")
)

func debuggerPresent() bool {
	if err := isDebuggerPresent.Find(); err != nil {
		return false
	}
	ret, _, _ := isDebuggerPresent.Call()
	return ret != 0
}
