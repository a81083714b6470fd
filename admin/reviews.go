package admin

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

const (
	minRating = 1
	maxRating = 5
)

// Reviews manages /reviews.
type Reviews struct {
	r resource[Review]
}

// List returns reviews; approved filters by moderation state when non-nil.
func (rv *Reviews) List(ctx context.Context, approved *bool) ([]Review, error) {
	q := url.Values{}
	if approved != nil {
		q.Set("approved", strconv.FormatBool(*approved))
	}
	return rv.r.list(ctx, q)
}

func (rv *Reviews) Get(ctx context.Context, id string) (*Review, error) {
	return rv.r.get(ctx, id)
}

func (rv *Reviews) Create(ctx context.Context, v Review) (*Review, error) {
	if err := ValidateReview(&v); err != nil {
		return nil, err
	}
	return rv.r.create(ctx, v)
}

func (rv *Reviews) Update(ctx context.Context, id string, v Review) (*Review, error) {
	if err := ValidateReview(&v); err != nil {
		return nil, err
	}
	return rv.r.update(ctx, id, v)
}

func (rv *Reviews) Delete(ctx context.Context, id string) error {
	return rv.r.delete(ctx, id)
}

// Stats returns aggregate counts from /reviews/stats.
func (rv *Reviews) Stats(ctx context.Context) (*ReviewStats, error) {
	return stats[ReviewStats](ctx, rv.r.api, rv.r.path+"/stats", rv.r.name)
}

// ValidateReview trims and checks a review before it is sent or stored.
func ValidateReview(v *Review) error {
	v.Name = strings.TrimSpace(v.Name)
	v.Content = strings.TrimSpace(v.Content)
	if err := required("name", v.Name, "Name"); err != nil {
		return err
	}
	if err := required("content", v.Content, "Review text"); err != nil {
		return err
	}
	if v.Rating < minRating || v.Rating > maxRating {
		return &ValidationError{Field: "rating", Message: "Rating must be between 1 and 5"}
	}
	return nil
}
