// Package storage places uploaded blobs on the local filesystem under a
// date-partitioned layout (<root>/YYYYMMDD/<uuid>_<name>).
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	partitionLayout    = "20060102"
	DefaultContentType = "application/octet-stream"
	maxNameLength      = 180
	// Temp files are "." + final name + ".tmp". SanitizeName never yields a
	// leading dot, so they cannot collide with stored blobs.
	tempPrefix = "."
	tempSuffix = ".tmp"
)

var (
	// ErrWrite marks failures while placing a blob on disk. Callers must not
	// persist metadata for a blob that failed with ErrWrite.
	ErrWrite = errors.New("storage write failed")
	// ErrInvalidPath is returned for storage paths that escape the root.
	ErrInvalidPath = errors.New("invalid storage path")
)

// StoredBlob describes a blob that was durably written.
type StoredBlob struct {
	// Path is relative to the store root, forward-slash separated.
	Path     string
	MimeType string
	Size     int64
}

type BlobStore interface {
	Store(nameHint string, content io.Reader) (StoredBlob, error)
	StoreUnder(prefix, nameHint string, content io.Reader) (StoredBlob, error)
	Remove(storagePath string) error
	Exists(storagePath string) (bool, error)
	Open(storagePath string) (*os.File, error)
	AbsPath(storagePath string) (string, error)
}

type LocalBlobStore struct {
	root string
	now  func() time.Time
}

func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage root %s: %v", ErrWrite, abs, err)
	}
	return &LocalBlobStore{root: abs, now: time.Now}, nil
}

// WithClock replaces the clock used to pick the date partition.
func (s *LocalBlobStore) WithClock(now func() time.Time) *LocalBlobStore {
	s.now = now
	return s
}

func (s *LocalBlobStore) Root() string {
	return s.root
}

func (s *LocalBlobStore) Store(nameHint string, content io.Reader) (StoredBlob, error) {
	return s.StoreUnder("", nameHint, content)
}

// StoreUnder is Store with an extra leading directory (for example
// "thumbnails") in front of the date partition.
func (s *LocalBlobStore) StoreUnder(prefix, nameHint string, content io.Reader) (StoredBlob, error) {
	partition := s.now().Format(partitionLayout)
	relDir := partition
	if prefix != "" {
		relDir = path.Join(SanitizeName(prefix), partition)
	}

	absDir := filepath.Join(s.root, filepath.FromSlash(relDir))
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return StoredBlob{}, fmt.Errorf("%w: create partition %s: %v", ErrWrite, relDir, err)
	}

	storageName := uuid.NewString() + "_" + SanitizeName(nameHint)
	finalPath := filepath.Join(absDir, storageName)
	tmpPath := filepath.Join(absDir, tempPrefix+storageName+tempSuffix)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredBlob{}, fmt.Errorf("%w: create %s: %v", ErrWrite, storageName, err)
	}
	size, err := io.Copy(f, content)
	if err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return StoredBlob{}, fmt.Errorf("%w: write %s: %v", ErrWrite, storageName, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmpPath)
		return StoredBlob{}, fmt.Errorf("%w: sync %s: %v", ErrWrite, storageName, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return StoredBlob{}, fmt.Errorf("%w: close %s: %v", ErrWrite, storageName, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return StoredBlob{}, fmt.Errorf("%w: rename %s: %v", ErrWrite, storageName, err)
	}

	return StoredBlob{
		Path:     path.Join(relDir, storageName),
		MimeType: DetectMimeType(storageName),
		Size:     size,
	}, nil
}

// Remove deletes the blob. A blob that is already gone is not an error.
func (s *LocalBlobStore) Remove(storagePath string) error {
	abs, err := s.AbsPath(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", storagePath, err)
	}
	return nil
}

func (s *LocalBlobStore) Exists(storagePath string) (bool, error) {
	abs, err := s.AbsPath(storagePath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (s *LocalBlobStore) Open(storagePath string) (*os.File, error) {
	abs, err := s.AbsPath(storagePath)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// SweepTemp removes temp files older than olderThan. They are left behind
// only when the process dies between create and rename.
func (s *LocalBlobStore) SweepTemp(olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	removed := 0
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !isTempName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove temp %s: %w", p, err)
		}
		removed++
		return nil
	})
	return removed, err
}

func isTempName(name string) bool {
	return len(name) > len(tempPrefix)+len(tempSuffix) &&
		strings.HasPrefix(name, tempPrefix) && strings.HasSuffix(name, tempSuffix)
}

// AbsPath maps a stored relative path to its location on disk, refusing
// anything that would resolve outside the root.
func (s *LocalBlobStore) AbsPath(storagePath string) (string, error) {
	if storagePath == "" || strings.Contains(storagePath, "\\") || path.IsAbs(storagePath) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	cleaned := path.Clean(storagePath)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, storagePath)
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// SanitizeName reduces an untrusted client file name to a single safe path
// segment. It never returns an empty string.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == ':' || r == 0:
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	if name == "" {
		return "file"
	}
	if len(name) > maxNameLength {
		ext := path.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = truncateUTF8(name[:len(name)-len(ext)], maxNameLength-len(ext)) + ext
	}
	return name
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

var knownTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".zip":  "application/zip",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// DetectMimeType guesses the media type from the extension of name.
func DetectMimeType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return DefaultContentType
	}
	if mt, ok := knownTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
	}
	return DefaultContentType
}
