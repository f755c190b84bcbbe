package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"notebox/config"
	"notebox/storage"

	"github.com/disintegration/imaging"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".gif": true, ".bmp": true,
}

func IsImageFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return imageExtensions[ext]
}

// ThumbnailService renders a JPEG preview for an image blob and stores it
// next to the originals under thumbnails/.
type ThumbnailService interface {
	Generate(srcPath string, filename string) (string, error)
}

type thumbnailService struct {
	blobs   storage.BlobStore
	width   int
	height  int
	quality int
}

func NewThumbnailService(blobs storage.BlobStore, cfg config.ThumbnailConfig) ThumbnailService {
	return &thumbnailService{blobs: blobs, width: cfg.Width, height: cfg.Height, quality: cfg.Quality}
}

func (s *thumbnailService) Generate(srcPath string, filename string) (string, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}

	thumb := imaging.Fit(img, s.width, s.height, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	blob, err := s.blobs.StoreUnder("thumbnails", base+"_thumb.jpg", &buf)
	if err != nil {
		return "", err
	}
	return blob.Path, nil
}
