package admin

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// ProjectFilter narrows Projects.List.
type ProjectFilter struct {
	Category string
	Featured *bool
	Limit    int
	Offset   int
}

func (f ProjectFilter) values() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Featured != nil {
		q.Set("featured", strconv.FormatBool(*f.Featured))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// Projects manages /projects.
type Projects struct {
	r resource[Project]
}

func (p *Projects) List(ctx context.Context, f ProjectFilter) ([]Project, error) {
	return p.r.list(ctx, f.values())
}

func (p *Projects) Get(ctx context.Context, id string) (*Project, error) {
	return p.r.get(ctx, id)
}

func (p *Projects) Create(ctx context.Context, v Project) (*Project, error) {
	if err := ValidateProject(&v); err != nil {
		return nil, err
	}
	return p.r.create(ctx, v)
}

func (p *Projects) Update(ctx context.Context, id string, v Project) (*Project, error) {
	if err := ValidateProject(&v); err != nil {
		return nil, err
	}
	return p.r.update(ctx, id, v)
}

func (p *Projects) Delete(ctx context.Context, id string) error {
	return p.r.delete(ctx, id)
}

// Stats returns aggregate counts from /projects/stats.
func (p *Projects) Stats(ctx context.Context) (*ProjectStats, error) {
	return stats[ProjectStats](ctx, p.r.api, p.r.path+"/stats", p.r.name)
}

// ValidateProject trims and checks a project before it is sent or stored.
func ValidateProject(v *Project) error {
	v.Title = strings.TrimSpace(v.Title)
	if err := required("title", v.Title, "Title"); err != nil {
		return err
	}
	techs := v.Technologies[:0]
	for _, t := range v.Technologies {
		if t = strings.TrimSpace(t); t != "" {
			techs = append(techs, t)
		}
	}
	v.Technologies = techs
	return nil
}
