// Package admin provides typed clients for the content-management endpoints:
// projects, categories, reviews and site content.
package admin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/jmcleod/folio/client"
)

// API is the subset of *client.Client the resource clients use.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.RequestOption) error
	Post(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Put(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Patch(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error
	Delete(ctx context.Context, path string, out any, opts ...client.RequestOption) error
	Upload(ctx context.Context, method, path string, form client.Form, out any, opts ...client.RequestOption) error
}

// Client groups the resource clients.
type Client struct {
	Projects   *Projects
	Categories *Categories
	Reviews    *Reviews
	Content    *ContentClient
}

// New returns resource clients over api.
func New(api API) *Client {
	return &Client{
		Projects:   &Projects{resource[Project]{api: api, path: "/projects", name: "project"}},
		Categories: &Categories{resource[Category]{api: api, path: "/categories", name: "category"}},
		Reviews:    &Reviews{resource[Review]{api: api, path: "/reviews", name: "review"}},
		Content:    &ContentClient{api: api},
	}
}

// unwrap turns a success:false envelope into a normalised client error.
func unwrap[T any](env client.Envelope[T], fallback string) (T, error) {
	if !env.Success {
		var zero T
		msg := env.Message
		if msg == "" {
			msg = fallback
		}
		return zero, &client.Error{StatusCode: http.StatusOK, Message: msg}
	}
	return env.Data, nil
}

// resource implements the CRUD verbs shared by every collection.
type resource[T any] struct {
	api  API
	path string
	name string
}

func (r resource[T]) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

func (r resource[T]) list(ctx context.Context, q url.Values) ([]T, error) {
	var env client.Envelope[[]T]
	var opts []client.RequestOption
	if len(q) > 0 {
		opts = append(opts, client.WithQuery(q))
	}
	if err := r.api.Get(ctx, r.path, &env, opts...); err != nil {
		return nil, err
	}
	return unwrap(env, fmt.Sprintf("Failed to load %s list", r.name))
}

func (r resource[T]) get(ctx context.Context, id string) (*T, error) {
	var env client.Envelope[T]
	if err := r.api.Get(ctx, r.item(id), &env); err != nil {
		return nil, err
	}
	v, err := unwrap(env, fmt.Sprintf("Failed to load %s", r.name))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r resource[T]) create(ctx context.Context, v T) (*T, error) {
	var env client.Envelope[T]
	if err := r.api.Post(ctx, r.path, v, &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, fmt.Sprintf("Failed to create %s", r.name))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r resource[T]) update(ctx context.Context, id string, v T) (*T, error) {
	var env client.Envelope[T]
	if err := r.api.Put(ctx, r.item(id), v, &env); err != nil {
		return nil, err
	}
	out, err := unwrap(env, fmt.Sprintf("Failed to update %s", r.name))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r resource[T]) delete(ctx context.Context, id string) error {
	var env client.Envelope[struct{}]
	if err := r.api.Delete(ctx, r.item(id), &env); err != nil {
		return err
	}
	_, err := unwrap(env, fmt.Sprintf("Failed to delete %s", r.name))
	return err
}

func stats[S any](ctx context.Context, api API, path, name string) (*S, error) {
	var env client.Envelope[S]
	if err := api.Get(ctx, path, &env); err != nil {
		return nil, err
	}
	s, err := unwrap(env, fmt.Sprintf("Failed to load %s stats", name))
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ValidationError is a local validation failure detected before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func required(field, value, label string) error {
	if value == "" {
		return &ValidationError{Field: field, Message: label + " is required"}
	}
	return nil
}

// fileForm builds a single-file multipart body.
func fileForm(field, filename string, r io.Reader, fields map[string]string) client.Form {
	return client.Form{
		Fields: fields,
		Files:  []client.File{{Field: field, Filename: filename, Content: r}},
	}
}
