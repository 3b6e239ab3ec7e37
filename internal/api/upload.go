package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// Upload is the served location of a stored image.
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// UploadImage sends r as the multipart field "image".
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (Upload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return Upload{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return Upload{}, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Upload{}, fmt.Errorf("close multipart writer: %w", err)
	}

	var up Upload
	err = c.do(ctx, request{
		method:      http.MethodPost,
		route:       "/upload",
		path:        "/upload",
		raw:         &buf,
		contentType: mw.FormDataContentType(),
	}, &up)
	return up, err
}
