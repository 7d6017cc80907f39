package wm

import (
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"

	"github.com/neopult/neopult/internal/handle"
)

// CreateVirtualWindow registers a virtual window: something that behaves
// like a managed window for mode/primary/geometry purposes but has no X
// window of its own — its placement is delivered through callbacks instead
// of X requests (spec §4.3.2).
func (mgr *Manager) CreateVirtualWindow(pluginInstance string, callbacks VirtualCallbacks, minGeometry *Geometry, demotion PrimaryDemotionAction) (*Handle, error) {
	if callbacks.SetGeometry == nil || callbacks.Map == nil || callbacks.Unmap == nil {
		return nil, ErrMissingCallback
	}
	geom := DefaultMinGeometry()
	if minGeometry != nil {
		geom = *minGeometry
	}
	mgr.seqCounter++
	w := &window{
		pluginInstance:        pluginInstance,
		isVirtual:             true,
		virtual:               callbacks,
		mode:                  ModeMin,
		minGeometry:           geom,
		primaryDemotionAction: demotion,
		insertionSeq:          mgr.seqCounter,
	}
	ref := mgr.table.Insert(w)
	mgr.metrics.WindowsManaged.Set(float64(len(mgr.refByWindow) + mgr.virtualCount()))
	mgr.placeMin(w)
	return &Handle{ref: ref, wm: mgr}, nil
}

// Unclaim releases a window from management. Real windows are unmapped and
// the managed hint is not reverted (the client is about to lose the window
// anyway); virtual windows get a final unmap callback.
func (h *Handle) Unclaim() error {
	mgr := h.wm
	w, err := mgr.table.Get(h.ref)
	if err != nil {
		return err
	}
	if w.isVirtual {
		cb := w.virtual.Unmap
		mgr.loop.RunLater(cb)
	} else {
		_ = xproto.UnmapWindowChecked(mgr.conn, w.xWindow).Check()
	}
	mgr.dropWindow(h.ref)
	mgr.metrics.WindowsManaged.Set(float64(len(mgr.refByWindow) + mgr.virtualCount()))
	return nil
}

// IsPrimary reports whether this window is the current primary (spec §3
// Primary window).
func (h *Handle) IsPrimary() bool {
	return h.wm.hasPrimary && h.wm.primary == h.ref
}

// Max moves a window into max mode, making it primary (spec §4.3.3): any
// previously-primary window in max mode is demoted per its own
// primary_demotion_action, and the root is resized to fit.
func (h *Handle) Max(size Size, margin Margin) error {
	mgr := h.wm
	w, err := mgr.table.Get(h.ref)
	if err != nil {
		return err
	}
	if mgr.hasPrimary && mgr.primary != h.ref {
		mgr.demotePrimary()
	}
	w.mode = ModeMax
	w.maxSize = size
	w.margin = margin
	mgr.seqCounter++
	w.lastMaxSeq = mgr.seqCounter
	mgr.primary = h.ref
	mgr.hasPrimary = true
	mgr.placeMax(w)
	mgr.resizeRoot()
	return nil
}

// Min moves a window into min mode, corner-anchored per its declared
// min_geometry. If it was primary, the primary slot is cleared and
// re-elected.
func (h *Handle) Min() error {
	mgr := h.wm
	w, err := mgr.table.Get(h.ref)
	if err != nil {
		return err
	}
	wasPrimary := mgr.hasPrimary && mgr.primary == h.ref
	w.mode = ModeMin
	mgr.placeMin(w)
	if wasPrimary {
		mgr.hasPrimary = false
		mgr.reelectPrimary()
		mgr.resizeRoot()
	}
	return nil
}

// Hide moves a window into hidden mode (unmapped / no geometry callbacks).
func (h *Handle) Hide() error {
	mgr := h.wm
	w, err := mgr.table.Get(h.ref)
	if err != nil {
		return err
	}
	wasPrimary := mgr.hasPrimary && mgr.primary == h.ref
	w.mode = ModeHidden
	mgr.placeHide(w)
	if wasPrimary {
		mgr.hasPrimary = false
		mgr.reelectPrimary()
		mgr.resizeRoot()
	}
	return nil
}

// demotePrimary applies the outgoing primary's primary_demotion_action
// (spec §4.3.3): do_nothing leaves it in max (just no longer primary and no
// longer resized-for), make_min moves it to min, hide unmaps it.
func (mgr *Manager) demotePrimary() {
	prev, err := mgr.table.Get(mgr.primary)
	if err != nil {
		mgr.hasPrimary = false
		return
	}
	switch prev.primaryDemotionAction {
	case MakeMin:
		prev.mode = ModeMin
		mgr.placeMin(prev)
	case Hide:
		prev.mode = ModeHidden
		mgr.placeHide(prev)
	case DoNothing:
		// stays exactly as placed; simply no longer primary.
	}
	mgr.hasPrimary = false
}

// reelectPrimary picks the max-mode window with the highest lastMaxSeq
// (spec §3 "the last window whose mode became max"), or clears the primary
// slot if none remain in max mode.
func (mgr *Manager) reelectPrimary() {
	var bestRef handle.Ref
	var bestSeq uint64
	found := false
	for _, e := range mgr.table.Entries() {
		if e.Value.mode != ModeMax {
			continue
		}
		if !found || e.Value.lastMaxSeq > bestSeq {
			found = true
			bestSeq = e.Value.lastMaxSeq
			bestRef = e.Ref
		}
	}
	mgr.hasPrimary = found
	if found {
		mgr.primary = bestRef
	}
}

// placeMin issues the X (or virtual-callback) requests to corner-anchor a
// window at its declared min_geometry within the current root size.
func (mgr *Manager) placeMin(w *window) {
	x, y := w.minGeometry.Resolve(mgr.currentRootSize.Width, mgr.currentRootSize.Height)
	width, height := w.minGeometry.Width, w.minGeometry.Height
	if w.isVirtual {
		cb := w.virtual.SetGeometry
		mapCb := w.virtual.Map
		mgr.loop.RunLater(func() {
			cb(x, y, width, height, 1)
			mapCb()
		})
		return
	}
	_ = xproto.ConfigureWindowChecked(mgr.conn, w.xWindow,
		uint16(xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode),
		[]uint32{uint32(x), uint32(y), uint32(width), uint32(height), uint32(xproto.StackModeAbove)},
	).Check()
	_ = xproto.MapWindowChecked(mgr.conn, w.xWindow).Check()
}

// placeMax fills the root (minus margin) with the primary window, stacked
// below every min window (spec §4.3.3 "min windows are always stacked above
// the primary window").
func (mgr *Manager) placeMax(w *window) {
	x := w.margin.Left
	y := w.margin.Top
	width := w.maxSize.Width
	height := w.maxSize.Height
	if w.isVirtual {
		cb := w.virtual.SetGeometry
		mapCb := w.virtual.Map
		mgr.loop.RunLater(func() {
			cb(x, y, width, height, 0)
			mapCb()
		})
		return
	}
	_ = xproto.ConfigureWindowChecked(mgr.conn, w.xWindow,
		uint16(xproto.ConfigWindowX|xproto.ConfigWindowY|xproto.ConfigWindowWidth|xproto.ConfigWindowHeight|xproto.ConfigWindowStackMode),
		[]uint32{uint32(x), uint32(y), uint32(width), uint32(height), uint32(xproto.StackModeBelow)},
	).Check()
	_ = xproto.MapWindowChecked(mgr.conn, w.xWindow).Check()
}

func (mgr *Manager) placeHide(w *window) {
	if w.isVirtual {
		cb := w.virtual.Unmap
		mgr.loop.RunLater(cb)
		return
	}
	_ = xproto.UnmapWindowChecked(mgr.conn, w.xWindow).Check()
}

// resizeRoot fits the root window to the current primary's declared size
// plus margin via RandR, or falls back to defaultRootSize when there is no
// primary (spec §4.3.4 Root-geometry law).
func (mgr *Manager) resizeRoot() {
	width, height := mgr.defaultRootSize.Width, mgr.defaultRootSize.Height
	if mgr.hasPrimary {
		if w, err := mgr.table.Get(mgr.primary); err == nil {
			width = w.maxSize.Width + w.margin.Left + w.margin.Right
			height = w.maxSize.Height + w.margin.Top + w.margin.Bottom
		}
	}
	screens, err := randr.GetScreenResourcesCurrent(mgr.conn, mgr.root).Reply()
	if err != nil || len(screens.Outputs) == 0 {
		mgr.logger.Warn("randr: no outputs available for root resize")
		return
	}
	err = randr.SetScreenSizeChecked(mgr.conn, mgr.root, uint16(width), uint16(height), uint32(width), uint32(height)).Check()
	if err != nil {
		mgr.logger.Error("randr: failed to resize root", zap.Int("width", width), zap.Int("height", height), zap.Error(err))
		return
	}
	mgr.currentRootSize = Size{Width: width, Height: height}
}
