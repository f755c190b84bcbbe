package utils

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string      `json:"detail"`
	Data   interface{} `json:"data,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// Page is the envelope for every paginated listing.
type Page[T any] struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	Data       []T   `json:"data"`
}

func NewPage[T any](data []T, total int64, page, pageSize int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: TotalPages(total, pageSize),
		Data:       data,
	}
}

// TotalPages never reports fewer than one page, so an empty listing still
// has a first page to show.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := int(math.Ceil(float64(total) / float64(pageSize)))
	if pages < 1 {
		return 1
	}
	return pages
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func SuccessWithMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{Detail: message})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, ErrorResponse{Detail: message, Data: data})
}
