package core

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Code identifies a failure condition. Codes are grouped by thousand:
// 1000-1999 initialization, 2000-2999 runtime, 3000-3999 configuration.
type Code uint32

const (
	Success Code = 0

	CodeAPIResolutionFailed Code = 1000
	CodeWrapperInitFailed   Code = 1001
	CodeModuleLoadFailed    Code = 1002
	CodeLoaderAccessFailed  Code = 1003
	CodeModuleNotFound      Code = 1004
	CodeExportNotFound      Code = 1005

	CodeVMExecution         Code = 2000
	CodeDecryptionFailed    Code = 2001
	CodeDebuggerDetected    Code = 2002
	CodeVMInvalidOpcode     Code = 2003
	CodeVMInvalidRegister   Code = 2004
	CodeVMStackOverflow     Code = 2005
	CodeVMStackUnderflow    Code = 2006
	CodeStringDecryptFailed Code = 2007

	CodeInvalidParameter    Code = 3000
	CodeIncompatibleModules Code = 3001
	CodeFeatureUnavailable  Code = 3002
	CodeInvalidProfile      Code = 3003
)

// Category returns the coarse group a code belongs to.
func (c Code) Category() string {
	switch {
	case c >= 1000 && c < 2000:
		return "Initialization"
	case c >= 2000 && c < 3000:
		return "Runtime"
	case c >= 3000 && c < 4000:
		return "Configuration"
	}
	return "Unknown"
}

// Report describes one failure surfaced through the shared reporting hook.
type Report struct {
	ID      uuid.UUID
	Code    Code
	Message string
	File    string
	Line    int
	Time    time.Time
}

func (r Report) String() string {
	return fmt.Sprintf("[VIVISECT ERROR] id=%s code=%d category=%s msg=%q at %s:%d",
		r.ID, uint32(r.Code), r.Code.Category(), r.Message, r.File, r.Line)
}

// Handler receives every reported failure. There is exactly one process-wide
// handler; replacing it swaps observability for the whole engine.
type Handler func(Report)

// Recovery decides whether a failure in its code range is handled (the
// operation may continue) or must still propagate as a failed return value.
type Recovery func(Report) bool

const recoveryRanges = 10 // one slot per thousand-range of codes

var (
	handlerMu  sync.Mutex
	handler    Handler
	recoveryMu sync.Mutex
	recoveries [recoveryRanges]Recovery
)

// SetErrorHandler replaces the process-wide error handler. A nil handler
// restores the default, which writes to stderr.
func SetErrorHandler(h Handler) {
	handlerMu.Lock()
	handler = h
	handlerMu.Unlock()
}

// RegisterRecovery installs a recovery predicate for the thousand-range that
// code falls in. Passing nil removes the predicate.
func RegisterRecovery(code Code, r Recovery) {
	idx := int(code) / 1000
	if idx >= recoveryRanges {
		return
	}
	recoveryMu.Lock()
	recoveries[idx] = r
	recoveryMu.Unlock()
}

// ReportError surfaces a failure through the shared hook and returns whether
// a registered recovery predicate considered it handled. The hook always
// runs, so observability never depends on the caller checking return values.
func ReportError(code Code, message string) bool {
	r := Report{
		ID:      uuid.New(),
		Code:    code,
		Message: message,
		Time:    time.Now(),
	}
	if _, file, line, ok := runtime.Caller(1); ok {
		r.File = file
		r.Line = line
	}

	handled := false
	idx := int(code) / 1000
	if idx < recoveryRanges {
		recoveryMu.Lock()
		rec := recoveries[idx]
		recoveryMu.Unlock()
		if rec != nil {
			handled = rec(r)
		}
	}

	handlerMu.Lock()
	h := handler
	handlerMu.Unlock()
	if h != nil {
		h(r)
	} else {
		fmt.Fprintln(os.Stderr, r.String())
	}
	return handled
}

// RegisterDefaultRecoveries installs the stock recovery policy: resolution,
// decryption and configuration failures are recoverable (the caller degrades
// to a fallback or rejects the value), VM execution failures are not.
func RegisterDefaultRecoveries() {
	RegisterRecovery(CodeAPIResolutionFailed, func(Report) bool { return true })
	RegisterRecovery(CodeVMExecution, func(Report) bool { return false })
	RegisterRecovery(CodeInvalidParameter, func(Report) bool { return true })
}
