package wm

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/neopult/neopult/internal/handle"
)

// Mode is one of the three compositing modes spec §4.3.3 defines.
type Mode int

const (
	ModeMax Mode = iota
	ModeMin
	ModeHidden
)

func (m Mode) String() string {
	switch m {
	case ModeMax:
		return "max"
	case ModeMin:
		return "min"
	case ModeHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// PrimaryDemotionAction is applied to a window that was primary when a
// different window becomes primary while it is still in max (spec §4.3.3).
type PrimaryDemotionAction int

const (
	DoNothing PrimaryDemotionAction = iota
	MakeMin
	Hide
)

// ParsePrimaryDemotionAction accepts the three string forms scripts pass to
// create_virtual_window (spec §6.4); an unrecognized value warns and
// defaults to DoNothing, matching the original's parse-error fallback.
func ParsePrimaryDemotionAction(s string) (PrimaryDemotionAction, bool) {
	switch s {
	case "do_nothing":
		return DoNothing, true
	case "make_min":
		return MakeMin, true
	case "hide":
		return Hide, true
	default:
		return DoNothing, false
	}
}

// Margin is the primary window's margin on each side (spec §4.3.3).
type Margin struct {
	Top, Right, Bottom, Left int
}

// Size is a width/height pair.
type Size struct {
	Width, Height int
}

// VirtualCallbacks are invoked, on the loop thread with the WM lock held,
// whenever the WM would otherwise issue an X request for a virtual window
// (spec §4.3.2). They must not call back into WM operations directly — the
// documented workaround is run_later (spec §4.3.5).
type VirtualCallbacks struct {
	SetGeometry func(x, y, w, h, zIndex int)
	Map         func()
	Unmap       func()
}

// window is the WM's internal representation of a managed window, real or
// virtual (spec §3 Window handle).
type window struct {
	pluginInstance string
	xWindow        xproto.Window // zero for virtual windows
	isVirtual      bool
	virtual        VirtualCallbacks

	mode        Mode
	minGeometry Geometry
	maxSize     Size
	margin      Margin

	primaryDemotionAction PrimaryDemotionAction

	// insertionSeq orders min windows and primary-election recency
	// (spec §4.3.3 "insertion order is a total order"; §3 Primary window
	// "the last window whose mode became max").
	insertionSeq uint64
	lastMaxSeq   uint64
}

// Handle is the capability object plugin scripts hold for a managed window.
type Handle struct {
	ref handle.Ref
	wm  *Manager
}

func (h *Handle) Ref() handle.Ref { return h.ref }
