package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"notebox/services"
	"notebox/utils"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// multipartSource adapts a multipart part to services.UploadSource.
type multipartSource struct {
	header *multipart.FileHeader
}

func (s multipartSource) Name() string { return s.header.Filename }

func (s multipartSource) Size() int64 { return s.header.Size }

func (s multipartSource) Open() (io.ReadCloser, error) { return s.header.Open() }

// parsePaging reads page and page_size. Missing values fall back to the
// defaults; values that are present but not integers are rejected.
func parsePaging(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "page must be an integer")
		return 0, 0, false
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(appOptions.DefaultPageSize)))
	if err != nil {
		utils.Error(c, http.StatusUnprocessableEntity, "page_size must be an integer")
		return 0, 0, false
	}
	return page, pageSize, true
}

// UploadFiles stores every part of the "files" field (and the single-file
// "file" field) in order. When a part fails, the records created before it
// are returned in the error body under data.created.
func UploadFiles(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			utils.Error(c, http.StatusUnprocessableEntity, "multipart form required")
			return
		}
		utils.Error(c, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer form.RemoveAll()

	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+len(form.File["file"]))
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	sources := lo.Map(headers, func(h *multipart.FileHeader, _ int) services.UploadSource {
		return multipartSource{header: h}
	})

	created, err := getServices().File.Upload(c.Request.Context(), identity, sources)
	if err != nil {
		var appErr *services.AppError
		if len(created) > 0 && errors.As(err, &appErr) {
			data := gin.H{"created": created}
			if appErr.Data != nil {
				data["error"] = appErr.Data
			}
			utils.ErrorWithData(c, appErr.HTTPCode, appErr.Message, data)
			return
		}
		respondServiceError(c, err)
		return
	}
	utils.Success(c, created)
}

func ListFiles(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	page, pageSize, ok := parsePaging(c)
	if !ok {
		return
	}

	result, err := getServices().File.List(c.Request.Context(), identity, services.ListFilesInput{
		Query:    c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, result)
}

func GetFile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	file, err := getServices().File.Get(c.Request.Context(), identity, c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, file)
}

func DeleteFile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if respondServiceError(c, getServices().File.Delete(c.Request.Context(), identity, c.Param("id"))) {
		return
	}
	utils.SuccessWithMessage(c, "File deleted")
}

// DownloadFile serves the blob. The trailing filename segment only makes
// links readable; the id alone selects the file.
func DownloadFile(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	access, err := getServices().File.Download(c.Request.Context(), identity, c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	serveAccess(c, access)
}

func GetThumbnail(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	access, err := getServices().File.Thumbnail(c.Request.Context(), identity, c.Param("id"))
	if respondServiceError(c, err) {
		return
	}
	serveAccess(c, access)
}

func serveAccess(c *gin.Context, access services.FileAccessOutput) {
	c.Header("Content-Type", access.ContentType)
	c.Header("Content-Disposition", access.Disposition)
	c.Header("X-Content-Type-Options", "nosniff")
	c.File(access.AbsPath)
}
