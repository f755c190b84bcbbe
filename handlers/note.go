package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"notebox/services"
	"notebox/utils"

	"github.com/gin-gonic/gin"
)

type CreateNoteRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type AttachFilesRequest struct {
	FileIDs []string `json:"file_ids"`
}

func CreateNote(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	note, err := getServices().Note.Create(c.Request.Context(), identity, services.CreateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, note)
}

func ListNotes(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, pageSize, ok := parsePaging(c)
	if !ok {
		return
	}

	result, err := getServices().Note.List(c.Request.Context(), identity, services.ListNotesInput{
		Query:    c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, result)
}

func GetNote(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	note, err := getServices().Note.Get(c.Request.Context(), identity, c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, note)
}

func UpdateNote(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	note, err := getServices().Note.Update(c.Request.Context(), identity, c.Param("id"), services.UpdateNoteInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, note)
}

func DeleteNote(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if respondServiceError(c, getServices().Note.Delete(c.Request.Context(), identity, c.Param("id"))) {
		return
	}
	utils.SuccessWithMessage(c, "Note deleted")
}

func AttachFiles(c *gin.Context) {
	changeAttachments(c, getServices().Note.AttachFiles)
}

func DetachFiles(c *gin.Context) {
	changeAttachments(c, getServices().Note.DetachFiles)
}

type attachmentFunc func(ctx context.Context, identity services.Identity, noteID string, fileIDs []string) (services.NoteOutput, error)

func changeAttachments(c *gin.Context, op attachmentFunc) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	ids, err := readFileIDs(c)
	if err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "body must be a list of file ids or {\"file_ids\": [...]}")
		return
	}

	note, err := op(c.Request.Context(), identity, c.Param("id"), ids)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, note)
}

// readFileIDs accepts either a bare JSON array or an object with file_ids.
func readFileIDs(c *gin.Context) ([]string, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err == nil {
		return ids, nil
	}
	var req AttachFilesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return req.FileIDs, nil
}
