package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notebox/config"
	"notebox/models"
	"notebox/storage"
)

type fileServiceFixture struct {
	svc   FileService
	files *fakeFileRepo
	notes *fakeNoteRepo
	blobs *flakyBlobStore
}

func newFileServiceFixture(t *testing.T, cfg FileServiceConfig) fileServiceFixture {
	t.Helper()
	local, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	if cfg.MaxPageSize == 0 {
		cfg.MaxPageSize = 100
	}
	if len(cfg.InlineTypes) == 0 {
		cfg.InlineTypes = []string{"application/pdf"}
	}
	files := newFakeFileRepo()
	notes := newFakeNoteRepo(files)
	blobs := &flakyBlobStore{BlobStore: local}
	return fileServiceFixture{
		svc:   NewFileService(fakeTxManager{}, files, notes, blobs, nil, cfg),
		files: files,
		notes: notes,
		blobs: blobs,
	}
}

var (
	alice = Identity{ID: "user-a", Username: "alice"}
	bob   = Identity{ID: "user-b", Username: "bob"}
)

func TestFileServiceUploadStoresExactBytes(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{PublicURL: "http://localhost:8000"})
	content := bytes.Repeat([]byte("x"), 1024)

	out, err := fx.svc.Upload(context.Background(), alice, []UploadSource{memorySource{name: "report.pdf", content: content}})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one record, got %d", len(out))
	}
	rec := out[0]
	if rec.Size != 1024 || rec.MimeType != "application/pdf" || rec.Filename != "report.pdf" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.DownloadURL != "http://localhost:8000/api/v1/files/download/"+rec.ID+"/report.pdf" {
		t.Fatalf("unexpected download url %q", rec.DownloadURL)
	}

	stored, err := readBlob(fx.blobs, rec.StoragePath)
	if err != nil {
		t.Fatalf("failed to read blob: %v", err)
	}
	if !bytes.Equal(stored, content) {
		t.Fatalf("stored blob differs from upload")
	}
	if fx.files.files[rec.ID].UserID != alice.ID {
		t.Fatalf("record owner not set to uploader")
	}
}

func TestFileServiceUploadSameNameTwice(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})

	out, err := fx.svc.Upload(context.Background(), alice, []UploadSource{
		memorySource{name: "notes.txt", content: []byte("one")},
		memorySource{name: "notes.txt", content: []byte("two")},
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if len(out) != 2 || out[0].ID == out[1].ID || out[0].StoragePath == out[1].StoragePath {
		t.Fatalf("expected two distinct records, got %+v", out)
	}
	first, _ := readBlob(fx.blobs, out[0].StoragePath)
	second, _ := readBlob(fx.blobs, out[1].StoragePath)
	if string(first) != "one" || string(second) != "two" {
		t.Fatalf("blobs overwrote each other: %q %q", first, second)
	}
}

func TestFileServiceUploadStopsAtFirstFailure(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{AllowedExtensions: []string{"txt"}})

	out, err := fx.svc.Upload(context.Background(), alice, []UploadSource{
		memorySource{name: "a.txt", content: []byte("a")},
		memorySource{name: "evil.exe", content: []byte("b")},
		memorySource{name: "c.txt", content: []byte("c")},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(out) != 1 || out[0].Filename != "a.txt" {
		t.Fatalf("expected the first record to survive, got %+v", out)
	}
	if len(fx.files.files) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(fx.files.files))
	}
}

func TestFileServiceUploadStorageFailureCreatesNoRecord(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	fx.blobs.storeErr = fmt.Errorf("%w: disk full", storage.ErrWrite)

	_, err := fx.svc.Upload(context.Background(), alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 AppError, got %v", err)
	}
	if len(fx.files.files) != 0 {
		t.Fatalf("no record may exist after a storage failure")
	}
}

func TestFileServiceUploadInsertFailureRemovesBlob(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	fx.files.createErr = errBoom

	_, err := fx.svc.Upload(context.Background(), alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}

	local := fx.blobs.BlobStore.(*storage.LocalBlobStore)
	matches, _ := filepath.Glob(filepath.Join(local.Root(), "*", "*_a.txt"))
	if len(matches) != 0 {
		t.Fatalf("expected orphaned blob to be removed, found %v", matches)
	}
}

func TestFileServiceUploadRejectsLargeFiles(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{MaxFileSize: 4})

	_, err := fx.svc.Upload(context.Background(), alice, []UploadSource{memorySource{name: "big.txt", content: []byte("12345")}})
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestFileServiceUploadRequiresSources(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})

	if _, err := fx.svc.Upload(context.Background(), alice, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFileServiceListPaginatesAndScopesToOwner(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: fmt.Sprintf("alice-%d.txt", i), content: []byte("a")}}); err != nil {
			t.Fatalf("upload failed: %v", err)
		}
	}
	if _, err := fx.svc.Upload(ctx, bob, []UploadSource{memorySource{name: "alice-secret.txt", content: []byte("b")}}); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	page, err := fx.svc.List(ctx, alice, ListFilesInput{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 7 || page.TotalPages != 1 || len(page.Data) != 7 {
		t.Fatalf("unexpected page: total=%d pages=%d len=%d", page.Total, page.TotalPages, len(page.Data))
	}
	if page.Data[0].Filename != "alice-6.txt" {
		t.Fatalf("expected newest first, got %s", page.Data[0].Filename)
	}

	page, err = fx.svc.List(ctx, alice, ListFilesInput{Query: "ALICE", Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 7 || page.TotalPages != 3 || len(page.Data) != 3 {
		t.Fatalf("unexpected second page: %+v", page)
	}
	for _, f := range page.Data {
		if strings.Contains(f.Filename, "secret") {
			t.Fatalf("listing leaked another user's file")
		}
	}
}

func TestFileServiceListEmpty(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})

	page, err := fx.svc.List(context.Background(), alice, ListFilesInput{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Total != 0 || page.TotalPages != 1 || page.Data == nil || len(page.Data) != 0 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestFileServiceListValidatesPaging(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})

	for _, in := range []ListFilesInput{
		{Page: 0, PageSize: 10},
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: 101},
		{Page: -3, PageSize: 10},
		{Page: math.MaxInt, PageSize: 10},
		{Page: math.MaxInt/10 + 2, PageSize: 10},
	} {
		_, err := fx.svc.List(context.Background(), alice, in)
		var appErr *AppError
		if !errors.As(err, &appErr) || appErr.HTTPCode != http.StatusUnprocessableEntity {
			t.Fatalf("%+v: expected 422, got %v", in, err)
		}
	}
}

func TestFileServiceGetMasksForeignFiles(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "report.pdf", content: []byte("pdf")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if _, err := fx.svc.Get(ctx, bob, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign file, got %v", err)
	}
	got, err := fx.svc.Get(ctx, alice, out[0].ID)
	if err != nil || got.ID != out[0].ID {
		t.Fatalf("owner Get failed: %v", err)
	}
}

func TestFileServiceDeleteRemovesBlobAndRecord(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	note := models.Note{ID: "note-1", UserID: alice.ID, Title: "t"}
	_ = fx.notes.Create(ctx, nil, &note)
	_ = fx.notes.AttachFiles(ctx, nil, &note, []models.File{fx.files.files[out[0].ID]})

	if err := fx.svc.Delete(ctx, alice, out[0].ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if exists, _ := fx.blobs.Exists(out[0].StoragePath); exists {
		t.Fatalf("blob should be gone")
	}
	if _, err := fx.svc.Get(ctx, alice, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if fx.notes.links["note-1"][out[0].ID] {
		t.Fatalf("note link should be removed with the file")
	}
}

func TestFileServiceDeleteUnknownOrForeign(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	if err := fx.svc.Delete(ctx, alice, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := fx.svc.Delete(ctx, bob, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got %v", err)
	}
	if exists, _ := fx.blobs.Exists(out[0].StoragePath); !exists {
		t.Fatalf("foreign delete must not touch the blob")
	}
}

func TestFileServiceDeleteToleratesMissingBlob(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if err := fx.blobs.Remove(out[0].StoragePath); err != nil {
		t.Fatalf("failed to pre-remove blob: %v", err)
	}

	if err := fx.svc.Delete(ctx, alice, out[0].ID); err != nil {
		t.Fatalf("Delete should tolerate an absent blob, got %v", err)
	}
	if len(fx.files.files) != 0 {
		t.Fatalf("record should be deleted")
	}
}

func TestFileServiceDeleteKeepsRecordWhenBlobRemovalFails(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	fx.blobs.removeErr = errors.New("permission denied")

	if err := fx.svc.Delete(ctx, alice, out[0].ID); !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, ok := fx.files.files[out[0].ID]; !ok {
		t.Fatalf("record must be kept when blob removal fails")
	}
}

func TestFileServiceDownloadDisposition(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{
		memorySource{name: "report.pdf", content: bytes.Repeat([]byte{1}, 1024)},
		memorySource{name: "data.csv", content: []byte("a,b")},
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	pdf, err := fx.svc.Download(ctx, alice, out[0].ID)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if pdf.Disposition != "inline; filename*=UTF-8''report.pdf" || pdf.ContentType != "application/pdf" {
		t.Fatalf("unexpected pdf access: %+v", pdf)
	}

	csv, err := fx.svc.Download(ctx, alice, out[1].ID)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if csv.Disposition != "attachment; filename=data.csv" {
		t.Fatalf("unexpected csv disposition %q", csv.Disposition)
	}
}

// Download applies the same ownership rule as Get and Delete. Serving any
// user's file by id alone is intentionally not supported.
func TestFileServiceDownloadEnforcesOwnership(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "report.pdf", content: []byte("pdf")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := fx.svc.Download(ctx, bob, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign download, got %v", err)
	}
}

func TestFileServiceDownloadMissingBlob(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	_ = fx.blobs.Remove(out[0].StoragePath)

	if _, err := fx.svc.Download(ctx, alice, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing blob, got %v", err)
	}
}

func TestFileServiceThumbnailRequiresOne(t *testing.T) {
	fx := newFileServiceFixture(t, FileServiceConfig{})
	ctx := context.Background()

	out, err := fx.svc.Upload(ctx, alice, []UploadSource{memorySource{name: "a.txt", content: []byte("a")}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := fx.svc.Thumbnail(ctx, alice, out[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound without thumbnail, got %v", err)
	}
}

func TestFileServiceUploadGeneratesThumbnail(t *testing.T) {
	local, err := storage.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	files := newFakeFileRepo()
	thumbs := NewThumbnailService(local, config.ThumbnailConfig{Width: 64, Height: 64, Quality: 80})
	svc := NewFileService(fakeTxManager{}, files, newFakeNoteRepo(files), local, thumbs, FileServiceConfig{MaxPageSize: 100})

	src := filepath.Join(t.TempDir(), "src.jpg")
	writeTestJPEG(t, src, 120, 80)
	content, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("failed to read image: %v", err)
	}

	ctx := context.Background()
	out, err := svc.Upload(ctx, alice, []UploadSource{memorySource{name: "photo.jpg", content: content}})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	access, err := svc.Thumbnail(ctx, alice, out[0].ID)
	if err != nil {
		t.Fatalf("Thumbnail returned error: %v", err)
	}
	if access.ContentType != "image/jpeg" {
		t.Fatalf("unexpected content type %q", access.ContentType)
	}

	thumbPath := files.files[out[0].ID].ThumbnailPath
	if err := svc.Delete(ctx, alice, out[0].ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if exists, _ := local.Exists(thumbPath); exists {
		t.Fatalf("thumbnail should be removed with the file")
	}
}
