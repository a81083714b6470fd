package devserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/folio/internal/uuid"
	"github.com/jmcleod/folio/storage"
)

// collection stores records of type T in one bucket keyed by id and serves
// the CRUD routes for them.
type collection[T any] struct {
	bucket string
	path   string
	name   string

	// id returns the address of the record's id field.
	id func(*T) *string
	// prepare validates v and stamps timestamps. prev is nil on create.
	prepare func(v, prev *T, now time.Time) error
	// match filters list results by query parameters.
	match func(r *http.Request, v *T) bool
	// compare orders list results.
	compare func(a, b *T) int
	// stats, when set, is served at path/stats.
	stats func(items []T) any
}

func mountCollection[T any](r chi.Router, a *API, c *collection[T]) {
	r.Route(c.path, func(r chi.Router) {
		r.Get("/", c.list(a))
		r.With(a.AuthMiddleware).Post("/", c.create(a))
		if c.stats != nil {
			r.With(a.AuthMiddleware).Get("/stats", c.serveStats(a))
		}
		r.Get("/{id}", c.get(a))
		r.With(a.AuthMiddleware).Put("/{id}", c.update(a))
		r.With(a.AuthMiddleware).Delete("/{id}", c.delete(a))
	})
}

func (c *collection[T]) load(repo storage.Repository, id string) (*T, error) {
	data, err := repo.Get(c.bucket, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", c.name, id, err)
	}
	return &v, nil
}

func (c *collection[T]) all(repo storage.Repository) ([]T, error) {
	keys, err := repo.List(c.bucket)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(keys))
	for _, k := range keys {
		v, err := c.load(repo, k)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	if c.compare != nil {
		slices.SortStableFunc(items, func(x, y T) int { return c.compare(&x, &y) })
	}
	return items, nil
}

func (c *collection[T]) save(repo storage.Repository, v *T, create bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if create {
		return repo.Create(c.bucket, *c.id(v), data)
	}
	return repo.Put(c.bucket, *c.id(v), data)
}

func (c *collection[T]) notFound() error {
	return errorf(http.StatusNotFound, fmt.Sprintf("%s not found", capitalize(c.name)))
}

// lookupErr turns storage misses into a resource-specific 404.
func (c *collection[T]) lookupErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBucketNotFound) {
		return c.notFound()
	}
	return err
}

func (c *collection[T]) list(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := c.all(a.repo)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		if c.match != nil {
			items = slices.DeleteFunc(items, func(v T) bool { return !c.match(r, &v) })
		}
		limit, offset := parsePagination(r)
		page, meta := paginate(items, limit, offset)
		writeJSON(w, http.StatusOK, response{Success: true, Data: page, Pagination: &meta})
	}
}

func (c *collection[T]) get(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := c.load(a.repo, chi.URLParam(r, "id"))
		if err != nil {
			a.mapError(w, r, c.lookupErr(err))
			return
		}
		writeData(w, http.StatusOK, "", v)
	}
}

func (c *collection[T]) create(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := decodeJSON[T](w, r)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		if err := c.prepare(&v, nil, a.now().UTC()); err != nil {
			a.mapError(w, r, err)
			return
		}
		*c.id(&v) = uuid.New()
		if err := c.save(a.repo, &v, true); err != nil {
			a.mapError(w, r, err)
			return
		}
		a.audit.logAdmin(AuditRecordCreated, r, accountFromContext(r.Context()).ID,
			slog.String("collection", c.bucket), slog.String("id", *c.id(&v)))
		writeData(w, http.StatusCreated, fmt.Sprintf("%s created successfully", capitalize(c.name)), v)
	}
}

func (c *collection[T]) update(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		prev, err := c.load(a.repo, id)
		if err != nil {
			a.mapError(w, r, c.lookupErr(err))
			return
		}
		v, err := decodeJSON[T](w, r)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		*c.id(&v) = id
		if err := c.prepare(&v, prev, a.now().UTC()); err != nil {
			a.mapError(w, r, err)
			return
		}
		if err := c.save(a.repo, &v, false); err != nil {
			a.mapError(w, r, err)
			return
		}
		a.audit.logAdmin(AuditRecordUpdated, r, accountFromContext(r.Context()).ID,
			slog.String("collection", c.bucket), slog.String("id", id))
		writeData(w, http.StatusOK, fmt.Sprintf("%s updated successfully", capitalize(c.name)), v)
	}
}

func (c *collection[T]) delete(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := a.repo.Delete(c.bucket, id); err != nil {
			a.mapError(w, r, c.lookupErr(err))
			return
		}
		a.audit.logAdmin(AuditRecordDeleted, r, accountFromContext(r.Context()).ID,
			slog.String("collection", c.bucket), slog.String("id", id))
		writeData(w, http.StatusOK, fmt.Sprintf("%s deleted successfully", capitalize(c.name)), nil)
	}
}

func (c *collection[T]) serveStats(a *API) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := c.all(a.repo)
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, "", c.stats(items))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func newestFirst(a, b time.Time) int {
	return b.Compare(a)
}
