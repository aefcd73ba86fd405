//go:build linux

package evasion

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
)

// A nonzero TracerPid in /proc/self/status means something is ptrace-attached.
func debuggerPresent() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	pid, ok := parseTracerPID(data)
	return ok && pid != 0
}

func parseTracerPID(status []byte) (int, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(status))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "TracerPid:") {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "TracerPid:")))
		if err != nil {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}
