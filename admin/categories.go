package admin

import (
	"context"
	"strings"
)

// Categories manages /categories.
type Categories struct {
	r resource[Category]
}

func (c *Categories) List(ctx context.Context) ([]Category, error) {
	return c.r.list(ctx, nil)
}

func (c *Categories) Get(ctx context.Context, id string) (*Category, error) {
	return c.r.get(ctx, id)
}

func (c *Categories) Create(ctx context.Context, v Category) (*Category, error) {
	if err := ValidateCategory(&v); err != nil {
		return nil, err
	}
	return c.r.create(ctx, v)
}

func (c *Categories) Update(ctx context.Context, id string, v Category) (*Category, error) {
	if err := ValidateCategory(&v); err != nil {
		return nil, err
	}
	return c.r.update(ctx, id, v)
}

func (c *Categories) Delete(ctx context.Context, id string) error {
	return c.r.delete(ctx, id)
}

// ValidateCategory trims and checks a category before it is sent or stored.
func ValidateCategory(v *Category) error {
	v.Name = strings.TrimSpace(v.Name)
	v.Slug = strings.TrimSpace(v.Slug)
	return required("name", v.Name, "Name")
}
