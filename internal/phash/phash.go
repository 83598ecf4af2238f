// Package phash computes 64-bit perceptual fingerprints of screen captures.
//
// The hash is an 8x8 average hash: the image is downsampled to an 8x8
// grayscale grid and each cell contributes one bit, set when the cell is
// brighter than the grid mean. Two captures of the same screen content hash
// to nearby values; the Hamming distance between hashes is the duplicate
// metric used by the buffer's suppression policy.
package phash

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

const gridSize = 8

// Compute returns the 64-bit average hash of img. Deterministic; never fails.
// An empty image hashes to 0.
func Compute(img image.Image) uint64 {
	if img == nil || img.Bounds().Empty() {
		return 0
	}

	luma := sampleGrid(img)

	var sum uint32
	for _, l := range luma {
		sum += uint32(l)
	}
	mean := sum / uint32(len(luma))

	var h uint64
	for i, l := range luma {
		if uint32(l) > mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

// Distance returns the Hamming distance between two hashes, in [0, 64].
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// sampleGrid downsamples img to an 8x8 grayscale grid and returns the 64
// luma samples in row-major order.
func sampleGrid(img image.Image) [gridSize * gridSize]uint8 {
	small := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var luma [gridSize * gridSize]uint8
	copy(luma[:], small.Pix)
	return luma
}

// IsBlack reports whether img looks like a screen-off capture rather than
// dark content. Over the 8x8 luma grid: every sample below 6, spread between
// brightest and darkest below 3, and at least 95% of samples below 5. Dark
// UI themes and dim video fail at least one of these.
func IsBlack(img image.Image) bool {
	if img == nil || img.Bounds().Empty() {
		return false
	}

	luma := sampleGrid(img)

	minL, maxL := luma[0], luma[0]
	nearBlack := 0
	for _, l := range luma {
		if l < minL {
			minL = l
		}
		if l > maxL {
			maxL = l
		}
		if l < 5 {
			nearBlack++
		}
	}

	if maxL >= 6 {
		return false
	}
	if maxL-minL >= 3 {
		return false
	}
	return nearBlack*100 >= len(luma)*95
}
