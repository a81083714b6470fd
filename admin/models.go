package admin

import "time"

// Project is a portfolio entry.
type Project struct {
	ID           string    `json:"id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	Technologies []string  `json:"technologies,omitempty"`
	ImageURL     string    `json:"imageUrl,omitempty"`
	LiveURL      string    `json:"liveUrl,omitempty"`
	RepoURL      string    `json:"githubUrl,omitempty"`
	Featured     bool      `json:"featured"`
	Order        int       `json:"order"`
	CreatedAt    time.Time `json:"createdAt,omitzero"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// ProjectStats summarises the project collection.
type ProjectStats struct {
	Total      int            `json:"total"`
	Featured   int            `json:"featured"`
	ByCategory map[string]int `json:"byCategory"`
}

// Category groups projects.
type Category struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// Review is a client testimonial.
type Review struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Position  string    `json:"position,omitempty"`
	Content   string    `json:"content"`
	Rating    int       `json:"rating"`
	Approved  bool      `json:"approved"`
	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// ReviewStats summarises reviews.
type ReviewStats struct {
	Total         int     `json:"total"`
	Approved      int     `json:"approved"`
	Pending       int     `json:"pending"`
	AverageRating float64 `json:"averageRating"`
}

// Hero is the landing page headline section.
type Hero struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Description string `json:"description,omitempty"`
}

// About is the biography section.
type About struct {
	Bio    string   `json:"bio"`
	Skills []string `json:"skills,omitempty"`
}

// Contact is the contact details section.
type Contact struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Certificate is an uploaded certification.
type Certificate struct {
	Title  string `json:"title"`
	Issuer string `json:"issuer,omitempty"`
	Date   string `json:"date,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Content is the editable site copy.
type Content struct {
	Hero         Hero              `json:"hero"`
	About        About             `json:"about"`
	Contact      Contact           `json:"contact"`
	Social       map[string]string `json:"social,omitempty"`
	ResumeURL    string            `json:"resumeUrl,omitempty"`
	Certificates []Certificate     `json:"certificates"`
	UpdatedAt    time.Time         `json:"updatedAt,omitzero"`
}

// Sections lists the names accepted by UpdateSection.
var Sections = []string{"hero", "about", "contact", "social"}

// SectionUpdate is the JSON body for PATCH /content/section.
type SectionUpdate struct {
	Section string `json:"section"`
	Data    any    `json:"data"`
}

// Upload is the data returned by file upload endpoints.
type Upload struct {
	URL string `json:"url"`
}
