//go:build !windows

package resolver

import (
	"fmt"

	"github.com/neuralforgeone/Vivisection-Engine/core"
)

// Live module enumeration needs the OS loader's structures; off Windows the
// default wiring reports the feature as unavailable. Tests and embedders
// substitute their own lister, fallback and opener through options.

type unavailableLister struct{}

func platformLister() ModuleLister { return unavailableLister{} }

func (unavailableLister) Modules() ([]Module, error) {
	core.ReportError(core.CodeFeatureUnavailable, "resolver: loader walk is unavailable on this platform")
	return nil, fmt.Errorf("loader walk unavailable on this platform")
}

func platformFallback() Fallback { return nil }

func platformImageOpener() ImageOpener {
	return func(Module) (*Image, error) {
		return nil, fmt.Errorf("live image mapping unavailable on this platform")
	}
}
