package controllers

import (
	"context"
	"net/http"
	"time"

	"civichero-be/apperr"
	"civichero-be/storage"

	"github.com/gin-gonic/gin"
)

type FileOpener interface {
	Open(ctx context.Context, bucket, name string) (*storage.File, error)
}

type FileController struct {
	files FileOpener
}

func NewFileController(files FileOpener) *FileController {
	return &FileController{files: files}
}

// ServeFile streams a stored upload. Names carry a random suffix, so the
// response is cacheable indefinitely.
func (fc *FileController) ServeFile(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	file, err := fc.files.Open(ctx, c.Param("bucket"), c.Param("name"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	defer file.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file, map[string]string{
		"Cache-Control":          "public, max-age=31536000, immutable",
		"X-Content-Type-Options": "nosniff",
	})
}
