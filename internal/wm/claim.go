package wm

import (
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"
)

// ClaimWindow implements spec §4.3.1. resolve is invoked exactly once, on
// the loop thread — synchronously before ClaimWindow returns if a match
// already exists, or later (from the X event handler or a timeout timer)
// otherwise. This is the cooperative-yield design spec §4.3.1 calls for
// ("the call yields control to the loop and resumes... other loop tasks
// continue to run") rather than the busy-poll-holding-a-lock the reference
// implementation actually used.
func (mgr *Manager) ClaimWindow(pluginInstance, classSubstring string, opts ClaimOptions, resolve func(*Handle, error)) {
	minGeom := DefaultMinGeometry()
	if opts.MinGeometry != nil {
		minGeom = *opts.MinGeometry
	}
	timeoutMs := opts.TimeoutMs
	if timeoutMs == 0 {
		timeoutMs = 250
	}

	if ref, ok := mgr.findClaimable(classSubstring, opts.IgnoreManaged); ok {
		mgr.metrics.ClaimsTotal.WithLabelValues("immediate").Inc()
		h := mgr.installClaim(pluginInstance, ref, minGeom)
		resolve(h, nil)
		return
	}

	pc := &pendingClaim{
		classSubstring: classSubstring,
		ignoreManaged:  opts.IgnoreManaged,
		minGeometry:    minGeom,
		pluginInstance: pluginInstance,
		resolve:        resolve,
	}
	mgr.pending = append(mgr.pending, pc)

	start := time.Now()
	timer := time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
		mgr.loop.Post(func() {
			mgr.expirePending(pc, start)
		})
	})
	pc.timer = timer
}

func (pc *pendingClaim) cancelTimer() {
	if pc.timer != nil {
		pc.timer.Stop()
	}
}

func (mgr *Manager) expirePending(pc *pendingClaim, start time.Time) {
	if pc.timedOut || pc.resolve == nil {
		return
	}
	for i, p := range mgr.pending {
		if p == pc {
			mgr.pending = append(mgr.pending[:i], mgr.pending[i+1:]...)
			break
		}
	}
	pc.timedOut = true
	mgr.metrics.ClaimsTotal.WithLabelValues("timeout").Inc()
	mgr.metrics.ClaimDuration.Observe(time.Since(start).Seconds())
	mgr.logger.Warn("claim_window timed out", zap.String("class_substring", pc.classSubstring))
	pc.resolve(nil, ErrClaimTimeout)
}

// checkPending is called whenever a new top-level window is observed
// (map request), and resolves the oldest pending claim it matches.
func (mgr *Manager) checkPending() {
	for i, pc := range mgr.pending {
		ref, ok := mgr.findClaimable(pc.classSubstring, pc.ignoreManaged)
		if !ok {
			continue
		}
		pc.cancelTimer()
		mgr.pending = append(mgr.pending[:i], mgr.pending[i+1:]...)
		mgr.metrics.ClaimsTotal.WithLabelValues("waited").Inc()
		h := mgr.installClaim(pc.pluginInstance, ref, pc.minGeometry)
		pc.resolve(h, nil)
		return
	}
}

// findClaimable scans currently-known top-level windows for the
// most-recently-seen one matching classSubstring that isn't already
// managed (unless ignoreManaged).
func (mgr *Manager) findClaimable(classSubstring string, ignoreManaged bool) (xproto.Window, bool) {
	var bestSeq uint64
	var best xproto.Window
	found := false
	for w, seq := range mgr.seen {
		if !ignoreManaged {
			if _, managed := mgr.refByWindow[w]; managed {
				continue
			}
		}
		if !classMatches(mgr.windowClass(w), classSubstring) {
			continue
		}
		if !found || seq > bestSeq {
			found = true
			bestSeq = seq
			best = w
		}
	}
	return best, found
}

// installClaim adds a real window to the management table, marks it with
// the managed-window hint, and places it in min mode (spec §4.3.1 "The
// window is immediately placed in min mode").
func (mgr *Manager) installClaim(pluginInstance string, xWindow xproto.Window, minGeom Geometry) *Handle {
	w := &window{
		pluginInstance:        pluginInstance,
		xWindow:               xWindow,
		mode:                  ModeMin,
		minGeometry:           minGeom,
		primaryDemotionAction: DoNothing,
	}
	ref := mgr.table.Insert(w)
	mgr.refByWindow[w.xWindow] = ref
	mgr.markManaged(w.xWindow)
	mgr.placeMin(w)
	mgr.metrics.WindowsManaged.Set(float64(len(mgr.refByWindow) + mgr.virtualCount()))
	return &Handle{ref: ref, wm: mgr}
}

func (mgr *Manager) markManaged(w xproto.Window) {
	_ = xproto.ChangePropertyChecked(mgr.conn, xproto.PropModeReplace, w, xproto.AtomWmName, xproto.AtomString, 8,
		uint32(len(managedHint)), []byte(managedHint)).Check()
}

func (mgr *Manager) virtualCount() int {
	n := 0
	for _, w := range mgr.table.Values() {
		if w.isVirtual {
			n++
		}
	}
	return n
}
