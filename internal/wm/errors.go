package wm

import "errors"

// ErrClaimTimeout is returned when no matching window appeared within
// timeout_ms (spec §7 ClaimTimeout). Scripts observe nil.
var ErrClaimTimeout = errors.New("no window matched before the claim timeout")

// ErrXFatal covers loss of the X connection or failure to become the
// substructure-redirecting window manager (spec §7 XFatal — fatal, process
// exits non-zero after a clean shutdown attempt).
var ErrXFatal = errors.New("fatal X server error")

// ErrMissingCallback is returned by CreateVirtualWindow when one of the
// three required callbacks is absent (spec §4.3.2 requires all of
// set_geometry, map, unmap — the original errors rather than defaulting
// silently, and this reimplementation keeps that behavior).
var ErrMissingCallback = errors.New("virtual window requires set_geometry, map and unmap callbacks")
