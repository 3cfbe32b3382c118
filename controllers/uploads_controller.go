package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/apperr"
	"go.uber.org/zap"
)

const maxImageSize = 10 << 20

// ---------------- UPLOAD IMAGES ----------------

// UploadImages stores every file of the multipart field "images" and returns
// their URLs. If any upload fails the ones already stored are removed.
func UploadImages(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if app.Uploader == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Image uploads are not configured."})
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			badRequest(c, "Expected a multipart form with images.")
			return
		}
		files := form.File["images"]
		if len(files) == 0 {
			badRequest(c, "No images provided.")
			return
		}
		for _, fh := range files {
			if fh.Size > maxImageSize {
				badRequest(c, fmt.Sprintf("%s is larger than 10MB.", fh.Filename))
				return
			}
			if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
				badRequest(c, fmt.Sprintf("%s is not an image.", fh.Filename))
				return
			}
		}

		urls := make([]string, 0, len(files))
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				discardUploads(app.Uploader, urls)
				respondError(c, apperr.Internal("Failed to upload "+fh.Filename, err))
				return
			}
			url, err := app.Uploader.Upload(c.Request.Context(), f, fh.Filename)
			_ = f.Close()
			if err != nil {
				discardUploads(app.Uploader, urls)
				respondError(c, apperr.Internal("Failed to upload "+fh.Filename, err))
				return
			}
			urls = append(urls, url)
		}

		c.JSON(http.StatusCreated, gin.H{"urls": urls})
	}
}

func discardUploads(up ImageUploader, urls []string) {
	if len(urls) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, u := range urls {
		if err := up.Delete(ctx, u); err != nil {
			zap.L().Warn("discard uploaded image", zap.String("url", u), zap.Error(err))
		}
	}
}
