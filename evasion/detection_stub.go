//go:build !windows && !linux

package evasion

func debuggerPresent() bool { return false }
