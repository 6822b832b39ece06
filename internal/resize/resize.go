// Package resize provides letterboxed image resizing against configured
// profiles.
package resize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/models"
)

// Outcome reports what happened to one image.
type Outcome int

const (
	// OutcomeResized means an output file/byte slice was produced.
	OutcomeResized Outcome = iota
	// OutcomeSkippedOrientation means the profile excludes the image's
	// orientation.
	OutcomeSkippedOrientation
	// OutcomeSkippedExists means the output file already exists.
	OutcomeSkippedExists
)

// Engine resizes images. It is stateless and safe for concurrent use.
type Engine struct {
	// JPEGQuality for encoded output; 0 means the imaging default.
	JPEGQuality int
}

// NewEngine creates an Engine with default settings.
func NewEngine() *Engine {
	return &Engine{}
}

// Resize fits the source image into the profile's box preserving aspect
// ratio, centers it on a black canvas of exactly the target size, and
// encodes JPEG. Images whose orientation the profile excludes are reported
// as skipped with nil output.
func (e *Engine) Resize(data []byte, profile models.ResizeProfile) ([]byte, Outcome, error) {
	if profile.Width < 1 || profile.Height < 1 {
		return nil, 0, apperr.Invalid("profile %q has dimensions %dx%d",
			profile.Name, profile.Width, profile.Height)
	}

	// AutoOrientation applies the EXIF rotation before we measure the image
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}

	if !includesOrientation(src, profile) {
		return nil, OutcomeSkippedOrientation, nil
	}

	out, err := e.letterbox(src, profile)
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	opts := []imaging.EncodeOption{}
	if e.JPEGQuality > 0 {
		opts = append(opts, imaging.JPEGQuality(e.JPEGQuality))
	}
	if err := imaging.Encode(&buf, out, imaging.JPEG, opts...); err != nil {
		return nil, 0, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), OutcomeResized, nil
}

// ResizeFile resizes srcPath into dstDir keeping the base file name, with a
// .jpg extension. An existing output is left alone and reported as skipped.
func (e *Engine) ResizeFile(srcPath, dstDir string, profile models.ResizeProfile) (Outcome, error) {
	name := filepath.Base(srcPath)
	ext := filepath.Ext(name)
	dstPath := filepath.Join(dstDir, name[:len(name)-len(ext)]+".jpg")

	if _, err := os.Stat(dstPath); err == nil {
		return OutcomeSkippedExists, nil
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", srcPath, err)
	}

	out, outcome, err := e.Resize(data, profile)
	if err != nil || outcome != OutcomeResized {
		return outcome, err
	}

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dstPath, out, 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", dstPath, err)
	}
	return OutcomeResized, nil
}

// letterbox fits src into the target box and pastes it centered on a black
// canvas of exactly the target dimensions.
func (e *Engine) letterbox(src image.Image, profile models.ResizeProfile) (image.Image, error) {
	fitted := imaging.Fit(src, profile.Width, profile.Height, imaging.Lanczos)
	canvas := imaging.New(profile.Width, profile.Height, color.Black)
	return imaging.PasteCenter(canvas, fitted), nil
}

// includesOrientation checks the profile's orientation filters. Square
// images count as horizontal, matching width >= height.
func includesOrientation(src image.Image, profile models.ResizeProfile) bool {
	b := src.Bounds()
	horizontal := b.Dx() >= b.Dy()
	if horizontal {
		return profile.IncludeHorizontal
	}
	return profile.IncludeVertical
}
