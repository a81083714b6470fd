package admin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/jmcleod/folio/client"
)

// ContentClient manages /content.
type ContentClient struct {
	api API
}

func (c *ContentClient) Get(ctx context.Context) (*Content, error) {
	var env client.Envelope[Content]
	if err := c.api.Get(ctx, "/content", &env); err != nil {
		return nil, err
	}
	v, err := unwrap(env, "Failed to load content")
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Update replaces the whole content document.
func (c *ContentClient) Update(ctx context.Context, v Content) (*Content, error) {
	var env client.Envelope[Content]
	if err := c.api.Put(ctx, "/content", v, &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, "Failed to update content")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSection replaces one named section (see Sections).
func (c *ContentClient) UpdateSection(ctx context.Context, section string, data any) (*Content, error) {
	if !slices.Contains(Sections, section) {
		return nil, &ValidationError{Field: "section", Message: fmt.Sprintf("Unknown section %q", section)}
	}
	var env client.Envelope[Content]
	if err := c.api.Patch(ctx, "/content/section", SectionUpdate{Section: section, Data: data}, &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, "Failed to update section")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadResume uploads the résumé file and returns its public URL.
func (c *ContentClient) UploadResume(ctx context.Context, filename string, r io.Reader) (*Upload, error) {
	if err := required("resume", filename, "Resume file"); err != nil {
		return nil, err
	}
	var env client.Envelope[Upload]
	if err := c.api.Upload(ctx, http.MethodPost, "/content/resume", fileForm("resume", filename, r, nil), &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, "Failed to upload resume")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCertificate uploads a certificate file with its metadata.
func (c *ContentClient) AddCertificate(ctx context.Context, cert Certificate, filename string, r io.Reader) (*Content, error) {
	if err := required("title", cert.Title, "Certificate title"); err != nil {
		return nil, err
	}
	fields := map[string]string{"title": cert.Title, "issuer": cert.Issuer, "date": cert.Date}
	var env client.Envelope[Content]
	if err := c.api.Upload(ctx, http.MethodPost, "/content/certificates", fileForm("certificate", filename, r, fields), &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, "Failed to add certificate")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCertificate removes the certificate at index.
func (c *ContentClient) DeleteCertificate(ctx context.Context, index int) (*Content, error) {
	if index < 0 {
		return nil, &ValidationError{Field: "index", Message: "Certificate index must not be negative"}
	}
	var env client.Envelope[Content]
	if err := c.api.Delete(ctx, "/content/certificates/"+strconv.Itoa(index), &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, "Failed to delete certificate")
	if err != nil {
		return nil, err
	}
	return &out, nil
}
