package render

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/openkin/skelviz/internal/scene"
	"github.com/openkin/skelviz/pkg/formats"
)

// Snapshot renders the scene offscreen and writes it as a PNG. Any other
// extension is rejected.
func (s *Surface) Snapshot(path string, sync *scene.Synchronizer) error {
	if strings.ToLower(filepath.Ext(path)) != ".png" {
		return fmt.Errorf("%w: snapshots are PNG only, got %s", formats.ErrUnsupportedFormat, filepath.Ext(path))
	}

	pixels := s.renderCapture(sync)
	img := flipToImage(pixels, s.width, s.height)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// flipToImage converts bottom-first GL pixels into a top-first image.
func flipToImage(pixels []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := width * 4
	for y := 0; y < height; y++ {
		src := pixels[(height-1-y)*stride : (height-y)*stride]
		copy(img.Pix[y*img.Stride:], src)
	}
	return img
}
