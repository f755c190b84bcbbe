package services

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notebox/config"
	"notebox/storage"

	"github.com/disintegration/imaging"
)

func TestIsImageFile(t *testing.T) {
	if !IsImageFile("avatar.PNG") {
		t.Fatalf("expected PNG extension to be recognized")
	}
	if IsImageFile("doc.txt") {
		t.Fatalf("expected TXT extension to be rejected")
	}
}

func writeTestJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create src image: %v", err)
	}
	if err := jpeg.Encode(f, src, &jpeg.Options{Quality: 95}); err != nil {
		_ = f.Close()
		t.Fatalf("failed to write src image: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close src image: %v", err)
	}
}

func TestGenerateThumbnailIsBoundedAndStored(t *testing.T) {
	blobs, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	srcPath := filepath.Join(t.TempDir(), "src.jpg")
	writeTestJPEG(t, srcPath, 200, 100)

	thumbs := NewThumbnailService(blobs, config.ThumbnailConfig{Width: 64, Height: 64, Quality: 80})
	rel, err := thumbs.Generate(srcPath, "holiday.jpg")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.HasPrefix(rel, "thumbnails/") || !strings.HasSuffix(rel, "_holiday_thumb.jpg") {
		t.Fatalf("unexpected thumbnail path %q", rel)
	}

	abs, err := blobs.AbsPath(rel)
	if err != nil {
		t.Fatalf("AbsPath failed: %v", err)
	}
	img, err := imaging.Open(abs)
	if err != nil {
		t.Fatalf("failed to open thumbnail: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("expected 64x32 thumbnail, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestGenerateThumbnailRejectsNonImage(t *testing.T) {
	blobs, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	srcPath := filepath.Join(t.TempDir(), "fake.png")
	if err := os.WriteFile(srcPath, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write fake image: %v", err)
	}

	thumbs := NewThumbnailService(blobs, config.ThumbnailConfig{Width: 64, Height: 64, Quality: 80})
	if _, err := thumbs.Generate(srcPath, "fake.png"); err == nil {
		t.Fatalf("expected error for undecodable image")
	}
}
