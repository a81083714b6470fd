package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
)

// File is one file part of a multipart upload.
type File struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Form is a multipart/form-data request body.
type Form struct {
	Fields map[string]string
	Files  []File
}

// Upload sends form as multipart/form-data using method and decodes the
// response into out.
func (c *Client) Upload(ctx context.Context, method, path string, form Form, out any, opts ...RequestOption) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.Fields {
		if err := mw.WriteField(k, v); err != nil {
			return &Error{Message: fmt.Sprintf("encoding form field %q: %v", k, err), Err: err}
		}
	}
	for _, f := range form.Files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return &Error{Message: fmt.Sprintf("encoding form file %q: %v", f.Field, err), Err: err}
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return &Error{Message: fmt.Sprintf("reading %s: %v", f.Filename, err), Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return &Error{Message: err.Error(), Err: err}
	}
	return c.send(ctx, method, path, &buf, mw.FormDataContentType(), out, opts)
}
