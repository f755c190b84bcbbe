package services

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"notebox/models"
	"notebox/repositories"
	"notebox/storage"

	"gorm.io/gorm"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeUserRepo struct {
	usersByID   map[string]models.User
	usersByName map[string]models.User
	createErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByID:   map[string]models.User{},
		usersByName: map[string]models.User{},
	}
}

func (r *fakeUserRepo) put(user models.User) {
	r.usersByID[user.ID] = user
	r.usersByName[user.Username] = user
}

func (r *fakeUserRepo) CountByUsername(_ context.Context, _ *gorm.DB, username string) (int64, error) {
	if _, ok := r.usersByName[username]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *fakeUserRepo) Create(_ context.Context, _ *gorm.DB, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	r.put(*user)
	return nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, _ *gorm.DB, username string) (models.User, error) {
	user, ok := r.usersByName[username]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, userID string) (models.User, error) {
	user, ok := r.usersByID[userID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeFileRepo struct {
	files     map[string]models.File
	clock     time.Time
	createErr error
	deleteErr error
	created   []string
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		files: map[string]models.File{},
		clock: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
}

func (r *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *models.File) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.files {
		if existing.StoragePath == file.StoragePath {
			return gorm.ErrDuplicatedKey
		}
	}
	if file.CreatedAt.IsZero() {
		r.clock = r.clock.Add(time.Second)
		file.CreatedAt = r.clock
	}
	r.files[file.ID] = *file
	r.created = append(r.created, file.ID)
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, _ *gorm.DB, fileID string) (models.File, error) {
	file, ok := r.files[fileID]
	if !ok {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, fileID string, userID string) (models.File, error) {
	file, ok := r.files[fileID]
	if !ok || file.UserID != userID {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return file, nil
}

func (r *fakeFileRepo) GetByIDsAndUser(_ context.Context, _ *gorm.DB, userID string, fileIDs []string) ([]models.File, error) {
	var out []models.File
	for _, id := range fileIDs {
		if file, ok := r.files[id]; ok && file.UserID == userID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (r *fakeFileRepo) matching(in repositories.ListFilesInput) []models.File {
	var out []models.File
	q := strings.ToLower(in.Query)
	for _, file := range r.files {
		if file.UserID != in.UserID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(file.Filename), q) {
			continue
		}
		out = append(out, file)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *fakeFileRepo) CountByUser(_ context.Context, _ *gorm.DB, in repositories.ListFilesInput) (int64, error) {
	return int64(len(r.matching(in))), nil
}

func (r *fakeFileRepo) ListByUser(_ context.Context, _ *gorm.DB, in repositories.ListFilesInput) ([]models.File, error) {
	all := r.matching(in)
	if in.Offset >= len(all) {
		return nil, nil
	}
	end := in.Offset + in.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[in.Offset:end], nil
}

func (r *fakeFileRepo) DeleteByIDAndUser(_ context.Context, _ *gorm.DB, fileID string, userID string) (int64, error) {
	if r.deleteErr != nil {
		return 0, r.deleteErr
	}
	file, ok := r.files[fileID]
	if !ok || file.UserID != userID {
		return 0, nil
	}
	delete(r.files, fileID)
	return 1, nil
}

type fakeNoteRepo struct {
	notes map[string]models.Note
	links map[string]map[string]bool
	files *fakeFileRepo
	clock time.Time
}

func newFakeNoteRepo(files *fakeFileRepo) *fakeNoteRepo {
	return &fakeNoteRepo{
		notes: map[string]models.Note{},
		links: map[string]map[string]bool{},
		files: files,
		clock: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
}

func (r *fakeNoteRepo) Create(_ context.Context, _ *gorm.DB, note *models.Note) error {
	r.clock = r.clock.Add(time.Second)
	note.CreatedAt = r.clock
	note.UpdatedAt = r.clock
	r.notes[note.ID] = *note
	return nil
}

func (r *fakeNoteRepo) GetByIDAndUser(_ context.Context, _ *gorm.DB, noteID string, userID string, preloadFiles bool) (models.Note, error) {
	note, ok := r.notes[noteID]
	if !ok || note.UserID != userID {
		return models.Note{}, gorm.ErrRecordNotFound
	}
	note.Files = nil
	if preloadFiles {
		for fileID := range r.links[noteID] {
			if file, ok := r.files.files[fileID]; ok {
				note.Files = append(note.Files, file)
			}
		}
		sort.Slice(note.Files, func(i, j int) bool {
			return note.Files[i].CreatedAt.After(note.Files[j].CreatedAt)
		})
	}
	return note, nil
}

func (r *fakeNoteRepo) matching(in repositories.ListNotesInput) []models.Note {
	var out []models.Note
	q := strings.ToLower(in.Query)
	for _, note := range r.notes {
		if note.UserID != in.UserID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(note.Title), q) && !strings.Contains(strings.ToLower(note.Content), q) {
			continue
		}
		out = append(out, note)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *fakeNoteRepo) CountByUser(_ context.Context, _ *gorm.DB, in repositories.ListNotesInput) (int64, error) {
	return int64(len(r.matching(in))), nil
}

func (r *fakeNoteRepo) ListByUser(_ context.Context, _ *gorm.DB, in repositories.ListNotesInput) ([]models.Note, error) {
	all := r.matching(in)
	if in.Offset >= len(all) {
		return nil, nil
	}
	end := in.Offset + in.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[in.Offset:end], nil
}

func (r *fakeNoteRepo) UpdateByIDAndUser(_ context.Context, _ *gorm.DB, noteID string, userID string, updates map[string]interface{}) (int64, error) {
	note, ok := r.notes[noteID]
	if !ok || note.UserID != userID {
		return 0, nil
	}
	if v, ok := updates["title"].(string); ok {
		note.Title = v
	}
	if v, ok := updates["content"].(string); ok {
		note.Content = v
	}
	r.clock = r.clock.Add(time.Second)
	note.UpdatedAt = r.clock
	r.notes[noteID] = note
	return 1, nil
}

func (r *fakeNoteRepo) DeleteByIDAndUser(_ context.Context, _ *gorm.DB, noteID string, userID string) (int64, error) {
	note, ok := r.notes[noteID]
	if !ok || note.UserID != userID {
		return 0, nil
	}
	delete(r.notes, noteID)
	return 1, nil
}

func (r *fakeNoteRepo) AttachFiles(_ context.Context, _ *gorm.DB, note *models.Note, files []models.File) error {
	if r.links[note.ID] == nil {
		r.links[note.ID] = map[string]bool{}
	}
	for _, f := range files {
		r.links[note.ID][f.ID] = true
	}
	return nil
}

func (r *fakeNoteRepo) DetachFiles(_ context.Context, _ *gorm.DB, note *models.Note, files []models.File) error {
	for _, f := range files {
		delete(r.links[note.ID], f.ID)
	}
	return nil
}

func (r *fakeNoteRepo) DeleteLinksByFile(_ context.Context, _ *gorm.DB, fileID string) error {
	for _, linked := range r.links {
		delete(linked, fileID)
	}
	return nil
}

func (r *fakeNoteRepo) DeleteLinksByNote(_ context.Context, _ *gorm.DB, noteID string) error {
	delete(r.links, noteID)
	return nil
}

type fakeRevocations struct {
	revoked map[string]time.Duration
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: map[string]time.Duration{}}
}

func (r *fakeRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.revoked[tokenID] = ttl
	return nil
}

func (r *fakeRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

// flakyBlobStore wraps a real store and injects failures.
type flakyBlobStore struct {
	storage.BlobStore
	storeErr  error
	removeErr error
}

func (s *flakyBlobStore) Store(nameHint string, content io.Reader) (storage.StoredBlob, error) {
	if s.storeErr != nil {
		return storage.StoredBlob{}, s.storeErr
	}
	return s.BlobStore.Store(nameHint, content)
}

func (s *flakyBlobStore) Remove(storagePath string) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	return s.BlobStore.Remove(storagePath)
}

type memorySource struct {
	name    string
	content []byte
	openErr error
}

func (s memorySource) Name() string { return s.name }

func (s memorySource) Size() int64 { return int64(len(s.content)) }

func (s memorySource) Open() (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(strings.NewReader(string(s.content))), nil
}

var errBoom = errors.New("boom")

func readBlob(store storage.BlobStore, storagePath string) ([]byte, error) {
	abs, err := store.AbsPath(storagePath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(abs)
}

func fakeUser(id, username string) models.User {
	return models.User{ID: id, Username: username, Password: "x", CreatedAt: time.Now()}
}
