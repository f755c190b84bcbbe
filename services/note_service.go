package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"notebox/models"
	"notebox/repositories"
	"notebox/utils"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxNoteTitleLength = 255

type CreateNoteInput struct {
	Title   string
	Content string
}

// UpdateNoteInput leaves nil fields untouched.
type UpdateNoteInput struct {
	Title   *string
	Content *string
}

type ListNotesInput struct {
	Query    string
	Page     int
	PageSize int
}

type NoteOutput struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Files     []FileOutput `json:"files,omitempty"`
}

type NoteService interface {
	Create(ctx context.Context, identity Identity, in CreateNoteInput) (NoteOutput, error)
	List(ctx context.Context, identity Identity, in ListNotesInput) (utils.Page[NoteOutput], error)
	Get(ctx context.Context, identity Identity, noteID string) (NoteOutput, error)
	Update(ctx context.Context, identity Identity, noteID string, in UpdateNoteInput) (NoteOutput, error)
	Delete(ctx context.Context, identity Identity, noteID string) error
	AttachFiles(ctx context.Context, identity Identity, noteID string, fileIDs []string) (NoteOutput, error)
	DetachFiles(ctx context.Context, identity Identity, noteID string, fileIDs []string) (NoteOutput, error)
}

type noteService struct {
	txManager   TxManager
	notes       repositories.NoteRepository
	files       repositories.FileRepository
	publicURL   string
	maxPageSize int
}

func NewNoteService(txManager TxManager, notes repositories.NoteRepository, files repositories.FileRepository, publicURL string, maxPageSize int) NoteService {
	return &noteService{
		txManager:   txManager,
		notes:       notes,
		files:       files,
		publicURL:   publicURL,
		maxPageSize: maxPageSize,
	}
}

func validateTitle(title string) error {
	if title == "" {
		return newAppError(http.StatusUnprocessableEntity, "title must not be empty", nil)
	}
	if utf8.RuneCountInString(title) > maxNoteTitleLength {
		return newAppError(http.StatusUnprocessableEntity, "title is too long", nil)
	}
	return nil
}

func (s *noteService) Create(ctx context.Context, identity Identity, in CreateNoteInput) (NoteOutput, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return NoteOutput{}, err
	}

	note := models.Note{
		ID:      uuid.NewString(),
		UserID:  identity.ID,
		Title:   title,
		Content: in.Content,
	}
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.notes.Create(ctx, tx, &note)
	})
	if err != nil {
		return NoteOutput{}, persistenceError("failed to create note", err)
	}

	slog.Debug("note created", "user_id", identity.ID, "note_id", note.ID)
	return s.toOutput(note), nil
}

func (s *noteService) List(ctx context.Context, identity Identity, in ListNotesInput) (utils.Page[NoteOutput], error) {
	if err := validatePage(in.Page, in.PageSize, s.maxPageSize); err != nil {
		return utils.Page[NoteOutput]{}, err
	}

	query := repositories.ListNotesInput{
		UserID: identity.ID,
		Query:  strings.TrimSpace(in.Query),
		Offset: (in.Page - 1) * in.PageSize,
		Limit:  in.PageSize,
	}
	total, err := s.notes.CountByUser(ctx, nil, query)
	if err != nil {
		return utils.Page[NoteOutput]{}, persistenceError("failed to count notes", err)
	}
	list, err := s.notes.ListByUser(ctx, nil, query)
	if err != nil {
		return utils.Page[NoteOutput]{}, persistenceError("failed to list notes", err)
	}

	data := lo.Map(list, func(n models.Note, _ int) NoteOutput {
		return s.toOutput(n)
	})
	return utils.NewPage(data, total, in.Page, in.PageSize), nil
}

func (s *noteService) Get(ctx context.Context, identity Identity, noteID string) (NoteOutput, error) {
	note, err := s.getOwned(ctx, nil, identity, noteID, true)
	if err != nil {
		return NoteOutput{}, err
	}
	return s.toOutput(note), nil
}

func (s *noteService) Update(ctx context.Context, identity Identity, noteID string, in UpdateNoteInput) (NoteOutput, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return NoteOutput{}, err
		}
		updates["title"] = title
	}
	if in.Content != nil {
		updates["content"] = *in.Content
	}

	if len(updates) > 0 {
		var affected int64
		err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
			var err error
			affected, err = s.notes.UpdateByIDAndUser(ctx, tx, noteID, identity.ID, updates)
			return err
		})
		if err != nil {
			return NoteOutput{}, persistenceError("failed to update note", err)
		}
		if affected == 0 {
			return NoteOutput{}, notFound("Note not found")
		}
	}

	return s.Get(ctx, identity, noteID)
}

// Delete drops the note and its attachment links. Attached files are kept.
func (s *noteService) Delete(ctx context.Context, identity Identity, noteID string) error {
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := s.getOwned(ctx, tx, identity, noteID, false); err != nil {
			return err
		}
		if err := s.notes.DeleteLinksByNote(ctx, tx, noteID); err != nil {
			return err
		}
		_, err := s.notes.DeleteByIDAndUser(ctx, tx, noteID, identity.ID)
		return err
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return persistenceError("failed to delete note", err)
	}
	return nil
}

func (s *noteService) AttachFiles(ctx context.Context, identity Identity, noteID string, fileIDs []string) (NoteOutput, error) {
	return s.changeAttachments(ctx, identity, noteID, fileIDs, s.notes.AttachFiles)
}

func (s *noteService) DetachFiles(ctx context.Context, identity Identity, noteID string, fileIDs []string) (NoteOutput, error) {
	return s.changeAttachments(ctx, identity, noteID, fileIDs, s.notes.DetachFiles)
}

type attachmentOp func(ctx context.Context, tx *gorm.DB, note *models.Note, files []models.File) error

// changeAttachments requires every file id to belong to the caller; a
// single foreign or unknown id fails the whole request as not found.
func (s *noteService) changeAttachments(ctx context.Context, identity Identity, noteID string, fileIDs []string, op attachmentOp) (NoteOutput, error) {
	ids := lo.Uniq(lo.Compact(lo.Map(fileIDs, func(id string, _ int) string {
		return strings.TrimSpace(id)
	})))
	if len(ids) == 0 {
		return NoteOutput{}, newAppError(http.StatusUnprocessableEntity, "file_ids must not be empty", nil)
	}

	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		note, err := s.getOwned(ctx, tx, identity, noteID, false)
		if err != nil {
			return err
		}
		files, err := s.files.GetByIDsAndUser(ctx, tx, identity.ID, ids)
		if err != nil {
			return err
		}
		if len(files) != len(ids) {
			found := lo.Map(files, func(f models.File, _ int) string { return f.ID })
			missing, _ := lo.Difference(ids, found)
			return newAppErrorWithData(http.StatusNotFound, "File not found", map[string][]string{"missing": missing}, nil)
		}
		return op(ctx, tx, &note, files)
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return NoteOutput{}, appErr
		}
		return NoteOutput{}, persistenceError("failed to update attachments", err)
	}

	return s.Get(ctx, identity, noteID)
}

func (s *noteService) getOwned(ctx context.Context, tx *gorm.DB, identity Identity, noteID string, preloadFiles bool) (models.Note, error) {
	note, err := s.notes.GetByIDAndUser(ctx, tx, noteID, identity.ID, preloadFiles)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Note{}, notFound("Note not found")
		}
		return models.Note{}, persistenceError("failed to query note", err)
	}
	return note, nil
}

func (s *noteService) toOutput(n models.Note) NoteOutput {
	out := NoteOutput{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if len(n.Files) > 0 {
		out.Files = lo.Map(n.Files, func(f models.File, _ int) FileOutput {
			return toFileOutput(s.publicURL, f)
		})
	}
	return out
}
