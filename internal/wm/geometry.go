package wm

import (
	"fmt"
	"strconv"
	"strings"
)

// Alignment encodes which corner a MinGeometry's offsets are measured from
// (spec §3 Window handle, §4.3.3 Min placement, GLOSSARY "Min geometry").
type Alignment int

const (
	// AlignTopLeft: offsets measured from the top-left corner ("+", "+").
	AlignTopLeft Alignment = iota
	// AlignTopRight: ("-", "+") — x from the right, y from the top.
	AlignTopRight
	// AlignBottomRight: ("-", "-") — the default corner.
	AlignBottomRight
	// AlignBottomLeft: ("+", "-") — x from the left, y from the bottom.
	AlignBottomLeft
)

// String renders the two-letter code virtual windows receive
// (spec §4.3.3: "lt|rt|rb|lb").
func (a Alignment) String() string {
	switch a {
	case AlignTopLeft:
		return "lt"
	case AlignTopRight:
		return "rt"
	case AlignBottomRight:
		return "rb"
	case AlignBottomLeft:
		return "lb"
	default:
		return "rb"
	}
}

// Geometry is a parsed corner-anchored rectangle descriptor: width, height,
// a signed x/y offset from the selected corner (spec §3 Window handle
// "configured min geometry").
type Geometry struct {
	Width, Height   int
	XOffset, YOffset int
	Alignment       Alignment
}

// DefaultMinGeometry is the implementation-defined small rectangle spec
// §4.3.1 allows as a fallback when claim_window is not given one — matching
// the value the original implementation actually shipped.
func DefaultMinGeometry() Geometry {
	g, err := ParseGeometry("480x360-0-0")
	if err != nil {
		panic(err) // constant string, cannot fail
	}
	return g
}

// ParseGeometry parses strings of the shape "WxH<sign>X<sign>Y", e.g.
// "480x360-0-0" or "400x300+200-100". The sign pair selects the corner:
// (+,+) top-left, (-,+) top-right, (-,-) bottom-right, (+,-) bottom-left —
// ported from the original window_manager.rs AlignedGeometry::from_str,
// including its exact rejection of missing offsets and trailing garbage.
func ParseGeometry(s string) (Geometry, error) {
	xIdx := strings.IndexByte(s, 'x')
	if xIdx < 0 {
		return Geometry{}, fmt.Errorf("missing 'x' separator in geometry %q", s)
	}
	widthStr := s[:xIdx]
	rest := s[xIdx+1:]

	signIdx := strings.IndexAny(rest, "+-")
	if signIdx < 0 {
		return Geometry{}, fmt.Errorf("missing offsets in geometry %q", s)
	}
	heightStr := rest[:signIdx]
	offsets := rest[signIdx:]

	width, err := strconv.Atoi(widthStr)
	if err != nil || width < 0 {
		return Geometry{}, fmt.Errorf("invalid width in geometry %q", s)
	}
	height, err := strconv.Atoi(heightStr)
	if err != nil || height < 0 {
		return Geometry{}, fmt.Errorf("invalid height in geometry %q", s)
	}

	xSign, xDigits, remainder, err := takeSignedRun(offsets)
	if err != nil {
		return Geometry{}, fmt.Errorf("invalid x offset in geometry %q", s)
	}
	ySign, yDigits, remainder, err := takeSignedRun(remainder)
	if err != nil {
		return Geometry{}, fmt.Errorf("invalid y offset in geometry %q", s)
	}
	if remainder != "" {
		return Geometry{}, fmt.Errorf("trailing characters in geometry %q", s)
	}

	xOffset, err := strconv.Atoi(xDigits)
	if err != nil || xOffset < 0 {
		return Geometry{}, fmt.Errorf("invalid x magnitude in geometry %q", s)
	}
	yOffset, err := strconv.Atoi(yDigits)
	if err != nil || yOffset < 0 {
		return Geometry{}, fmt.Errorf("invalid y magnitude in geometry %q", s)
	}

	var alignment Alignment
	switch {
	case xSign == '+' && ySign == '+':
		alignment = AlignTopLeft
	case xSign == '-' && ySign == '+':
		alignment = AlignTopRight
	case xSign == '-' && ySign == '-':
		alignment = AlignBottomRight
	case xSign == '+' && ySign == '-':
		alignment = AlignBottomLeft
	}

	return Geometry{
		Width: width, Height: height,
		XOffset: xOffset, YOffset: yOffset,
		Alignment: alignment,
	}, nil
}

// takeSignedRun reads one leading sign character followed by one or more
// digits and returns the sign, the digit run, and the unconsumed remainder.
func takeSignedRun(s string) (sign byte, digits string, remainder string, err error) {
	if s == "" || (s[0] != '+' && s[0] != '-') {
		return 0, "", "", fmt.Errorf("expected sign")
	}
	sign = s[0]
	i := 1
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 1 {
		return 0, "", "", fmt.Errorf("expected digits after sign")
	}
	return sign, s[1:i], s[i:], nil
}

// Resolve computes the top-left (x,y) pixel position of a min-geometry
// rectangle within a root of size (rootW, rootH) — spec §4.3.3 Min
// placement.
func (g Geometry) Resolve(rootW, rootH int) (x, y int) {
	switch g.Alignment {
	case AlignTopLeft:
		return g.XOffset, g.YOffset
	case AlignTopRight:
		return rootW - g.Width - g.XOffset, g.YOffset
	case AlignBottomRight:
		return rootW - g.Width - g.XOffset, rootH - g.Height - g.YOffset
	case AlignBottomLeft:
		return g.XOffset, rootH - g.Height - g.YOffset
	default:
		return g.XOffset, g.YOffset
	}
}
