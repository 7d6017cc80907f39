package wm

import "testing"

func TestParseGeometryValid(t *testing.T) {
	cases := []struct {
		in   string
		want Geometry
	}{
		{"480x360-0-0", Geometry{Width: 480, Height: 360, XOffset: 0, YOffset: 0, Alignment: AlignBottomRight}},
		{"400x300+200-100", Geometry{Width: 400, Height: 300, XOffset: 200, YOffset: 100, Alignment: AlignBottomLeft}},
		{"640x480+0+0", Geometry{Width: 640, Height: 480, XOffset: 0, YOffset: 0, Alignment: AlignTopLeft}},
		{"320x240-10+5", Geometry{Width: 320, Height: 240, XOffset: 10, YOffset: 5, Alignment: AlignTopRight}},
	}

	for _, tc := range cases {
		got, err := ParseGeometry(tc.in)
		if err != nil {
			t.Fatalf("ParseGeometry(%q) returned error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseGeometry(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseGeometryInvalid(t *testing.T) {
	cases := []string{
		"",
		"-100x-100-0-0",
		"480x360",
		"100x100-0-0 ",
	}

	for _, in := range cases {
		if _, err := ParseGeometry(in); err == nil {
			t.Errorf("ParseGeometry(%q) succeeded, want error", in)
		}
	}
}

func TestDefaultMinGeometry(t *testing.T) {
	g := DefaultMinGeometry()
	if g.Width != 480 || g.Height != 360 || g.Alignment != AlignBottomRight {
		t.Errorf("DefaultMinGeometry() = %+v, want 480x360-0-0", g)
	}
}

func TestGeometryResolve(t *testing.T) {
	g, _ := ParseGeometry("100x50-10-20")
	x, y := g.Resolve(1920, 1080)
	if wantX, wantY := 1920-100-10, 1080-50-20; x != wantX || y != wantY {
		t.Errorf("Resolve() = (%d,%d), want (%d,%d)", x, y, wantX, wantY)
	}
}
