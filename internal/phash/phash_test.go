package phash

import (
	"image"
	"image/color"
	"testing"
)

// solid returns a uniform image filled with the given gray level.
func solid(w, h int, level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

// split returns an image whose left half is dark and right half is bright.
func split(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetGray(x, y, color.Gray{Y: 20})
			} else {
				img.SetGray(x, y, color.Gray{Y: 230})
			}
		}
	}
	return img
}

func TestComputeDeterministic(t *testing.T) {
	img := split(640, 480)
	h1 := Compute(img)
	h2 := Compute(img)
	if h1 != h2 {
		t.Errorf("Compute not deterministic: %x != %x", h1, h2)
	}
	if h1 == 0 {
		t.Error("expected non-zero hash for half-bright image")
	}
}

func TestComputeDistinguishesContent(t *testing.T) {
	a := Compute(split(640, 480))
	b := Compute(solid(640, 480, 128))
	if Distance(a, b) == 0 {
		t.Error("expected different hashes for different content")
	}
}

func TestDistance(t *testing.T) {
	h := Compute(split(320, 240))
	if d := Distance(h, h); d != 0 {
		t.Errorf("Distance(h, h) = %d, want 0", d)
	}
	if Distance(0, ^uint64(0)) != 64 {
		t.Error("all-bits distance should be 64")
	}
	a, b := uint64(0xF0F0), uint64(0x0F0F)
	if Distance(a, b) != Distance(b, a) {
		t.Error("distance should be symmetric")
	}
}

func TestComputeEmptyImage(t *testing.T) {
	if h := Compute(image.NewGray(image.Rect(0, 0, 0, 0))); h != 0 {
		t.Errorf("empty image hash = %x, want 0", h)
	}
	if h := Compute(nil); h != 0 {
		t.Errorf("nil image hash = %x, want 0", h)
	}
}

func TestIsBlack(t *testing.T) {
	cases := []struct {
		name string
		img  image.Image
		want bool
	}{
		{"true black", solid(640, 480, 0), true},
		{"near black", solid(640, 480, 2), true},
		{"dark theme", solid(640, 480, 18), false},
		{"dark video", split(640, 480), false},
		{"bright", solid(640, 480, 200), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsBlack(tc.img); got != tc.want {
			t.Errorf("%s: IsBlack = %v, want %v", tc.name, got, tc.want)
		}
	}
}
