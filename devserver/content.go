package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/internal/uuid"
	"github.com/jmcleod/folio/storage"
)

const (
	contentBucket = "content"
	contentKey    = "site"
	filesBucket   = "files"

	maxUploadSize = 10 << 20
)

// storedFile is an uploaded document served back from /files/{id}.
type storedFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

func decodeContent(data []byte, err error) (*admin.Content, error) {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
		return &admin.Content{Certificates: []admin.Certificate{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var c admin.Content
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	if c.Certificates == nil {
		c.Certificates = []admin.Certificate{}
	}
	return &c, nil
}

func (a *API) loadContent() (*admin.Content, error) {
	return decodeContent(a.repo.Get(contentBucket, contentKey))
}

// updateContent applies fn to the stored document and saves it within one
// transaction. An error from fn leaves the document untouched.
func (a *API) updateContent(fn func(c *admin.Content) error) (*admin.Content, error) {
	var updated *admin.Content
	err := a.repo.Batch(contentBucket, func(tx storage.BatchTx) error {
		c, err := decodeContent(tx.Get(contentKey))
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = a.now().UTC()
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		updated = c
		return tx.Put(contentKey, data)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetContent returns the site content document.
func (a *API) GetContent(w http.ResponseWriter, r *http.Request) {
	c, err := a.loadContent()
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", c)
}

// PutContent replaces the content document. Uploaded file references are
// kept from the stored copy.
func (a *API) PutContent(w http.ResponseWriter, r *http.Request) {
	next, err := decodeJSON[admin.Content](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.commitContent(w, r, "Content updated successfully", func(c *admin.Content) error {
		next.ResumeURL = c.ResumeURL
		next.Certificates = c.Certificates
		*c = next
		return nil
	})
}

type sectionRequest struct {
	Section string          `json:"section"`
	Data    json.RawMessage `json:"data"`
}

var errSectionData = errorf(http.StatusBadRequest, "Invalid section data")

// PatchContentSection replaces one named section.
func (a *API) PatchContentSection(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[sectionRequest](w, r)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if !slices.Contains(admin.Sections, req.Section) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown section %q", req.Section))
		return
	}
	if len(req.Data) == 0 {
		a.mapError(w, r, errSectionData)
		return
	}
	a.commitContent(w, r, "Section updated successfully", func(c *admin.Content) error {
		var target any
		switch req.Section {
		case "hero":
			c.Hero = admin.Hero{}
			target = &c.Hero
		case "about":
			c.About = admin.About{}
			target = &c.About
		case "contact":
			c.Contact = admin.Contact{}
			target = &c.Contact
		case "social":
			c.Social = nil
			target = &c.Social
		}
		if json.Unmarshal(req.Data, target) != nil {
			return errSectionData
		}
		return nil
	})
}

// commitContent runs an update and writes the resulting document.
func (a *API) commitContent(w http.ResponseWriter, r *http.Request, msg string, fn func(c *admin.Content) error) bool {
	c, err := a.updateContent(fn)
	if err != nil {
		a.mapError(w, r, err)
		return false
	}
	a.audit.logAdmin(AuditContentUpdated, r, accountFromContext(r.Context()).ID)
	writeData(w, http.StatusOK, msg, c)
	return true
}

// storeUpload saves the multipart file in field and returns its URL.
func (a *API) storeUpload(w http.ResponseWriter, r *http.Request, field string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", errorf(http.StatusBadRequest, "Invalid upload")
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", errorf(http.StatusBadRequest, fmt.Sprintf("File field %q is required", field))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", errorf(http.StatusBadRequest, "Invalid upload")
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(hdr.Filename)); byExt != "" {
			ct = byExt
		} else {
			ct = http.DetectContentType(data)
		}
	}
	id := uuid.New()
	rec, err := json.Marshal(storedFile{Name: path.Base(hdr.Filename), ContentType: ct, Data: data})
	if err != nil {
		return "", err
	}
	if err := a.repo.Put(filesBucket, id, rec); err != nil {
		return "", err
	}
	a.audit.logAdmin(AuditFileUploaded, r, accountFromContext(r.Context()).ID,
		slog.String("file_id", id), slog.Int("size", len(data)))
	return MountPath + "/files/" + id, nil
}

// UploadResume stores the résumé and points the content document at it.
func (a *API) UploadResume(w http.ResponseWriter, r *http.Request) {
	url, err := a.storeUpload(w, r, "resume")
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	var old string
	if _, err := a.updateContent(func(c *admin.Content) error {
		old = c.ResumeURL
		c.ResumeURL = url
		return nil
	}); err != nil {
		a.dropFile(url)
		a.mapError(w, r, err)
		return
	}
	a.dropFile(old)
	writeData(w, http.StatusOK, "Resume uploaded successfully", admin.Upload{URL: url})
}

// AddCertificate stores a certificate file and appends it to the content.
func (a *API) AddCertificate(w http.ResponseWriter, r *http.Request) {
	url, err := a.storeUpload(w, r, "certificate")
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	cert := admin.Certificate{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Issuer: strings.TrimSpace(r.FormValue("issuer")),
		Date:   strings.TrimSpace(r.FormValue("date")),
		URL:    url,
	}
	if cert.Title == "" {
		a.dropFile(url)
		writeError(w, http.StatusBadRequest, "Certificate title is required")
		return
	}
	if !a.commitContent(w, r, "Certificate added successfully", func(c *admin.Content) error {
		c.Certificates = append(c.Certificates, cert)
		return nil
	}) {
		a.dropFile(url)
	}
}

var errCertificateNotFound = errorf(http.StatusNotFound, "Certificate not found")

// DeleteCertificate removes the certificate at the index path parameter.
func (a *API) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || i < 0 {
		a.mapError(w, r, errCertificateNotFound)
		return
	}
	var removed admin.Certificate
	if a.commitContent(w, r, "Certificate deleted successfully", func(c *admin.Content) error {
		if i >= len(c.Certificates) {
			return errCertificateNotFound
		}
		removed = c.Certificates[i]
		c.Certificates = slices.Delete(c.Certificates, i, i+1)
		return nil
	}) {
		a.dropFile(removed.URL)
	}
}

// dropFile deletes a stored upload referenced by url, ignoring foreign URLs.
func (a *API) dropFile(url string) {
	id, ok := strings.CutPrefix(url, MountPath+"/files/")
	if !ok || id == "" {
		return
	}
	if err := a.repo.Delete(filesBucket, id); err != nil {
		a.logger.Debug("dropping upload", slog.String("file_id", id), slog.String("error", err.Error()))
	}
}

// GetFile serves an uploaded document.
func (a *API) GetFile(w http.ResponseWriter, r *http.Request) {
	data, err := a.repo.Get(filesBucket, chi.URLParam(r, "fileID"))
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	var f storedFile
	if err := json.Unmarshal(data, &f); err != nil {
		a.mapError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(f.Data)
}
