// Package wm implements the X11 window manager (C3): it becomes the
// substructure-redirecting client on the channel's root window, claims
// windows by WM_CLASS substring, tracks the max/min/hidden mode of every
// managed window (real or virtual), elects a primary, and resizes the root
// via RandR to fit the primary's declared size and margins (spec §4.3).
package wm

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"go.uber.org/zap"

	"github.com/neopult/neopult/internal/handle"
	"github.com/neopult/neopult/internal/logging"
	"github.com/neopult/neopult/internal/metrics"
)

// managedHint marks a real window as under our management by prepending it
// to WM_NAME, letting later QueryTree scans exclude already-managed windows
// — the same trick the original implementation uses.
const managedHint = "(managed by neopult) "

// Loop is the subset of the event loop the window manager needs: Post
// crosses from a background goroutine (the X event reader) onto the loop
// thread; RunLater enqueues work that must run on the loop thread but only
// after the caller — itself already running on the loop thread — returns
// (spec §4.3.5, §4.1).
type Loop interface {
	Post(func())
	RunLater(func())
}

// ClaimOptions mirrors spec §4.3.1 claim_window(class_substring, {...}).
type ClaimOptions struct {
	TimeoutMs     int
	MinGeometry   *Geometry
	IgnoreManaged bool
}

type pendingClaim struct {
	classSubstring string
	ignoreManaged  bool
	minGeometry    Geometry
	pluginInstance string
	resolve        func(*Handle, error)
	timedOut       bool
	timer          *time.Timer
}

// Manager owns the single X connection for a channel display.
type Manager struct {
	conn *xgb.Conn
	xu   *xgbutil.XUtil
	root xproto.Window

	loop    Loop
	logger  *logging.Logger
	metrics *metrics.Metrics

	table       *handle.Table[*window]
	refByWindow map[xproto.Window]handle.Ref
	seqCounter  uint64
	seen        map[xproto.Window]uint64 // X window -> map order

	pending []*pendingClaim

	defaultRootSize Size // immutable: the display's own geometry at Init, restored when no primary remains
	currentRootSize Size // the root's actual current size, updated by every resizeRoot
	primary         handle.Ref
	hasPrimary      bool

	onFatal func(error)
}

// Init connects to display, becomes the substructure-redirecting WM on its
// root window, and starts the background X event reader. Failure to become
// the WM (another one is already running) is ErrXFatal (spec §7).
func Init(display string, loop Loop, logger *logging.Logger, m *metrics.Metrics) (*Manager, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %v", ErrXFatal, display, err)
	}
	conn := xu.Conn()
	root := xu.RootWin()

	err = xproto.ChangeWindowAttributesChecked(conn, root, xproto.CwEventMask, []uint32{
		uint32(xproto.EventMaskSubstructureRedirect | xproto.EventMaskSubstructureNotify),
	}).Check()
	if err != nil {
		return nil, fmt.Errorf("%w: another window manager is already running: %v", ErrXFatal, err)
	}

	if err := randr.Init(conn); err != nil {
		return nil, fmt.Errorf("%w: randr init failed: %v", ErrXFatal, err)
	}

	defaultSize := Size{Width: 1920, Height: 1080}
	if geom, err := xproto.GetGeometry(conn, xproto.Drawable(root)).Reply(); err == nil {
		defaultSize = Size{Width: int(geom.Width), Height: int(geom.Height)}
	}

	mgr := &Manager{
		conn:            conn,
		xu:              xu,
		root:            root,
		loop:            loop,
		logger:          logger,
		metrics:         m,
		table:           handle.NewTable[*window](),
		refByWindow:     make(map[xproto.Window]handle.Ref),
		seen:            make(map[xproto.Window]uint64),
		defaultRootSize: defaultSize,
		currentRootSize: defaultSize,
	}

	go mgr.eventReader()

	return mgr, nil
}

// Close releases the X connection.
func (mgr *Manager) Close() { mgr.conn.Close() }

// OnFatal registers the callback C1 uses to begin a clean shutdown when the
// X connection is lost (spec §7 XFatal).
func (mgr *Manager) OnFatal(f func(error)) { mgr.onFatal = f }

// eventReader runs on its own goroutine (spec §5 "Worker threads exist only
// for... X event reception") and posts every decoded event onto the loop;
// it never mutates host state directly.
func (mgr *Manager) eventReader() {
	for {
		ev, err := mgr.conn.WaitForEvent()
		if err != nil {
			mgr.logger.Error("X connection error, treating as fatal", zap.Error(err))
			mgr.loop.Post(func() {
				if mgr.onFatal != nil {
					mgr.onFatal(fmt.Errorf("%w: %v", ErrXFatal, err))
				}
			})
			return
		}
		if ev == nil {
			continue
		}
		captured := ev
		mgr.loop.Post(func() { mgr.handleXEvent(captured) })
	}
}

func (mgr *Manager) handleXEvent(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.MapRequestEvent:
		mgr.handleMapRequest(e)
	case xproto.ConfigureRequestEvent:
		mgr.handleConfigureRequest(e)
	case xproto.CreateNotifyEvent:
		mgr.recordSeen(e.Window)
	case xproto.DestroyNotifyEvent:
		mgr.handleDestroy(e.Window)
	}
}

func (mgr *Manager) recordSeen(w xproto.Window) {
	if _, ok := mgr.seen[w]; !ok {
		mgr.seqCounter++
		mgr.seen[w] = mgr.seqCounter
	}
}

func (mgr *Manager) handleMapRequest(e xproto.MapRequestEvent) {
	mgr.recordSeen(e.Window)
	_ = xproto.MapWindowChecked(mgr.conn, e.Window).Check()
	mgr.checkPending()
}

func (mgr *Manager) handleConfigureRequest(e xproto.ConfigureRequestEvent) {
	if _, managed := mgr.refByWindow[e.Window]; managed {
		// The WM owns geometry for managed windows; ignore the client's
		// request rather than letting it fight our placement.
		return
	}
	var values []uint32
	var mask uint16
	if e.ValueMask&xproto.ConfigWindowX != 0 {
		mask |= xproto.ConfigWindowX
		values = append(values, uint32(e.X))
	}
	if e.ValueMask&xproto.ConfigWindowY != 0 {
		mask |= xproto.ConfigWindowY
		values = append(values, uint32(e.Y))
	}
	if e.ValueMask&xproto.ConfigWindowWidth != 0 {
		mask |= xproto.ConfigWindowWidth
		values = append(values, uint32(e.Width))
	}
	if e.ValueMask&xproto.ConfigWindowHeight != 0 {
		mask |= xproto.ConfigWindowHeight
		values = append(values, uint32(e.Height))
	}
	if e.ValueMask&xproto.ConfigWindowBorderWidth != 0 {
		mask |= xproto.ConfigWindowBorderWidth
		values = append(values, uint32(e.BorderWidth))
	}
	if e.ValueMask&xproto.ConfigWindowStackMode != 0 {
		mask |= xproto.ConfigWindowStackMode
		values = append(values, uint32(e.StackMode))
	}
	if mask != 0 {
		_ = xproto.ConfigureWindowChecked(mgr.conn, e.Window, uint16(mask), values).Check()
	}
}

func (mgr *Manager) handleDestroy(w xproto.Window) {
	delete(mgr.seen, w)
	ref, ok := mgr.refByWindow[w]
	if !ok {
		return
	}
	mgr.dropWindow(ref)
}

// dropWindow removes a window from the table without issuing further X
// requests against it (used both for explicit unclaim and for cleanup after
// the X window itself has already been destroyed).
func (mgr *Manager) dropWindow(ref handle.Ref) {
	win, err := mgr.table.Get(ref)
	if err != nil {
		return
	}
	if !win.isVirtual {
		delete(mgr.refByWindow, win.xWindow)
	}
	_ = mgr.table.Remove(ref)

	wasPrimary := mgr.hasPrimary && mgr.primary == ref
	if wasPrimary {
		mgr.hasPrimary = false
		mgr.reelectPrimary()
		mgr.resizeRoot()
	}
}

// windowByClass finds the WM_CLASS of a top-level window, or "" if it has
// none (spec §4.3.1 claim by substring of WM_CLASS).
func (mgr *Manager) windowClass(w xproto.Window) string {
	reply, err := xproto.GetProperty(mgr.conn, false, w, xproto.AtomWmClass, xproto.AtomString, 0, 1024).Reply()
	if err != nil || reply == nil {
		return ""
	}
	return string(reply.Value)
}

func classMatches(class, substring string) bool {
	return substring == "" || strings.Contains(class, substring)
}
