// Package screenshot stores window captures and compares them pixel by
// pixel. Capturing itself happens in the injected platform capturer;
// this package owns file placement and diffing.
package screenshot

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Capturer writes a PNG of one native window to a path.
type Capturer interface {
	CaptureWindow(nativeHandle uint64, path string) error
}

// Store captures into a flat directory with unique file names.
type Store struct {
	dir     string
	capture Capturer
}

func NewStore(dir string, capture Capturer) (*Store, error) {
	if dir == "" {
		dir = "data/screenshots"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, capture: capture}, nil
}

// Capture grabs the window's pixels and returns the written file path.
func (s *Store) Capture(nativeHandle uint64, label string) (string, error) {
	if s.capture == nil {
		return "", fmt.Errorf("screen capture is not available on this platform")
	}
	if label == "" {
		label = "window"
	}
	name := fmt.Sprintf("%s_%s_%s.png", label, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(s.dir, name)
	if err := s.capture.CaptureWindow(nativeHandle, path); err != nil {
		return "", fmt.Errorf("capture window: %w", err)
	}
	return path, nil
}

// DiffResult summarizes a pixel comparison of two captures.
type DiffResult struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	DifferingCount int     `json:"differing_pixels"`
	DifferingRatio float64 `json:"differing_ratio"`
	SizeMismatch   bool    `json:"size_mismatch"`
}

// Diff compares two PNG files pixel by pixel. Differently sized images
// report a size mismatch with no per-pixel comparison.
func Diff(pathA, pathB string) (DiffResult, error) {
	imgA, err := loadPNG(pathA)
	if err != nil {
		return DiffResult{}, err
	}
	imgB, err := loadPNG(pathB)
	if err != nil {
		return DiffResult{}, err
	}

	ba, bb := imgA.Bounds(), imgB.Bounds()
	res := DiffResult{Width: ba.Dx(), Height: ba.Dy()}
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		res.SizeMismatch = true
		return res, nil
	}

	total := ba.Dx() * ba.Dy()
	for y := 0; y < ba.Dy(); y++ {
		for x := 0; x < ba.Dx(); x++ {
			ra, ga, bA, aa := imgA.At(ba.Min.X+x, ba.Min.Y+y).RGBA()
			rb, gb, bB, ab := imgB.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if ra != rb || ga != gb || bA != bB || aa != ab {
				res.DifferingCount++
			}
		}
	}
	if total > 0 {
		res.DifferingRatio = float64(res.DifferingCount) / float64(total)
	}
	return res, nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
