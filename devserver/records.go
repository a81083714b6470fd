package devserver

import (
	"cmp"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jmcleod/folio/admin"
)

func (a *API) projects() *collection[admin.Project] {
	return &collection[admin.Project]{
		bucket: "projects",
		path:   "/projects",
		name:   "project",
		id:     func(v *admin.Project) *string { return &v.ID },
		prepare: func(v, prev *admin.Project, now time.Time) error {
			if err := admin.ValidateProject(v); err != nil {
				return err
			}
			v.CreatedAt = now
			if prev != nil {
				v.CreatedAt = prev.CreatedAt
			}
			v.UpdatedAt = now
			return nil
		},
		match: func(r *http.Request, v *admin.Project) bool {
			q := r.URL.Query()
			if c := q.Get("category"); c != "" && !strings.EqualFold(c, v.Category) {
				return false
			}
			if f, err := strconv.ParseBool(q.Get("featured")); err == nil && f != v.Featured {
				return false
			}
			return true
		},
		compare: func(x, y *admin.Project) int {
			return cmp.Or(cmp.Compare(x.Order, y.Order), newestFirst(x.CreatedAt, y.CreatedAt))
		},
		stats: func(items []admin.Project) any {
			s := admin.ProjectStats{Total: len(items), ByCategory: map[string]int{}}
			for _, p := range items {
				if p.Featured {
					s.Featured++
				}
				if p.Category != "" {
					s.ByCategory[p.Category]++
				}
			}
			return s
		},
	}
}

func (a *API) categories() *collection[admin.Category] {
	return &collection[admin.Category]{
		bucket: "categories",
		path:   "/categories",
		name:   "category",
		id:     func(v *admin.Category) *string { return &v.ID },
		prepare: func(v, prev *admin.Category, now time.Time) error {
			if err := admin.ValidateCategory(v); err != nil {
				return err
			}
			if v.Slug == "" {
				v.Slug = slugify(v.Name)
			}
			v.CreatedAt = now
			if prev != nil {
				v.CreatedAt = prev.CreatedAt
			}
			return nil
		},
		compare: func(x, y *admin.Category) int {
			return cmp.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name))
		},
	}
}

func (a *API) reviews() *collection[admin.Review] {
	return &collection[admin.Review]{
		bucket: "reviews",
		path:   "/reviews",
		name:   "review",
		id:     func(v *admin.Review) *string { return &v.ID },
		prepare: func(v, prev *admin.Review, now time.Time) error {
			if err := admin.ValidateReview(v); err != nil {
				return err
			}
			v.CreatedAt = now
			if prev != nil {
				v.CreatedAt = prev.CreatedAt
			}
			return nil
		},
		match: func(r *http.Request, v *admin.Review) bool {
			if ap, err := strconv.ParseBool(r.URL.Query().Get("approved")); err == nil {
				return ap == v.Approved
			}
			return true
		},
		compare: func(x, y *admin.Review) int {
			return newestFirst(x.CreatedAt, y.CreatedAt)
		},
		stats: func(items []admin.Review) any {
			s := admin.ReviewStats{Total: len(items)}
			sum := 0
			for _, rv := range items {
				if rv.Approved {
					s.Approved++
				} else {
					s.Pending++
				}
				sum += rv.Rating
			}
			if len(items) > 0 {
				s.AverageRating = float64(sum) / float64(len(items))
			}
			return s
		},
	}
}

// slugify lowercases name and joins its alphanumeric runs with dashes.
func slugify(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return strings.Join(fields, "-")
}
