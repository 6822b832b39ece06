package resize

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/kimhsiao/photosync/internal/models"
)

// encodeTestImage produces a JPEG of the given dimensions filled with one color.
func encodeTestImage(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := imaging.New(width, height, c)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to decode output: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// TestResizeLetterbox tests that output is exactly the target size with the
// source centered.
func TestResizeLetterbox(t *testing.T) {
	engine := NewEngine()
	profile := models.ResizeProfile{
		Name: "tv", Width: 400, Height: 300,
		IncludeHorizontal: true, IncludeVertical: true,
	}

	// A wide source: letterboxing pads top and bottom
	src := encodeTestImage(t, 800, 200, color.White)

	out, outcome, err := engine.Resize(src, profile)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if outcome != OutcomeResized {
		t.Fatalf("Expected resized outcome, got %d", outcome)
	}

	w, h := decodeSize(t, out)
	if w != 400 || h != 300 {
		t.Errorf("Expected 400x300 output, got %dx%d", w, h)
	}

	// The corners must be letterbox black, the center must not be
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 > 16 || g>>8 > 16 || b>>8 > 16 {
		t.Errorf("Expected black letterbox corner, got %d/%d/%d", r>>8, g>>8, b>>8)
	}
	r, _, _, _ = img.At(200, 150).RGBA()
	if r>>8 < 200 {
		t.Errorf("Expected white center, got red channel %d", r>>8)
	}
}

// TestResizeOrientationFilter tests the include flags.
func TestResizeOrientationFilter(t *testing.T) {
	engine := NewEngine()
	horizontalOnly := models.ResizeProfile{
		Name: "wide", Width: 400, Height: 300,
		IncludeHorizontal: true, IncludeVertical: false,
	}

	vertical := encodeTestImage(t, 200, 800, color.White)
	out, outcome, err := engine.Resize(vertical, horizontalOnly)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if outcome != OutcomeSkippedOrientation {
		t.Errorf("Expected orientation skip, got %d", outcome)
	}
	if out != nil {
		t.Error("Expected nil output for skipped image")
	}

	horizontal := encodeTestImage(t, 800, 200, color.White)
	_, outcome, err = engine.Resize(horizontal, horizontalOnly)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if outcome != OutcomeResized {
		t.Errorf("Expected resized outcome, got %d", outcome)
	}
}

// TestResizeInvalidProfile tests dimension validation.
func TestResizeInvalidProfile(t *testing.T) {
	engine := NewEngine()
	src := encodeTestImage(t, 100, 100, color.White)
	_, _, err := engine.Resize(src, models.ResizeProfile{Name: "bad", Width: 0, Height: 100})
	if err == nil {
		t.Error("Expected error for zero-width profile")
	}
}

// TestResizeRejectsGarbage tests decode failure handling.
func TestResizeRejectsGarbage(t *testing.T) {
	engine := NewEngine()
	profile := models.ResizeProfile{
		Name: "tv", Width: 100, Height: 100,
		IncludeHorizontal: true, IncludeVertical: true,
	}
	if _, _, err := engine.Resize([]byte("not an image"), profile); err == nil {
		t.Error("Expected decode error")
	}
}

// TestResizeFileSkipsExisting tests that existing outputs are left alone.
func TestResizeFileSkipsExisting(t *testing.T) {
	engine := NewEngine()
	profile := models.ResizeProfile{
		Name: "tv", Width: 100, Height: 100,
		IncludeHorizontal: true, IncludeVertical: true,
	}

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(srcPath, encodeTestImage(t, 200, 100, color.White), 0644); err != nil {
		t.Fatalf("Failed to write source: %v", err)
	}

	dstDir := filepath.Join(dir, "out")
	outcome, err := engine.ResizeFile(srcPath, dstDir, profile)
	if err != nil {
		t.Fatalf("ResizeFile failed: %v", err)
	}
	if outcome != OutcomeResized {
		t.Fatalf("Expected resized outcome, got %d", outcome)
	}

	// Second run finds the output and skips
	outcome, err = engine.ResizeFile(srcPath, dstDir, profile)
	if err != nil {
		t.Fatalf("Second ResizeFile failed: %v", err)
	}
	if outcome != OutcomeSkippedExists {
		t.Errorf("Expected exists skip, got %d", outcome)
	}
}
