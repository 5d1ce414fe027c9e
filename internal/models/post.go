package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultReadTime is used when a post is created without a read time.
const DefaultReadTime = 5

const (
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	dateLayout      = "2006-01-02"
)

// Post is the external representation of a blog post. ID is always the
// storage identifier rendered as a string.
type Post struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Excerpt       string   `json:"excerpt"`
	Content       string   `json:"content"`
	Date          string   `json:"date"`
	Author        string   `json:"author"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	ReadTime      int      `json:"readTime"`
	FeaturedImage string   `json:"featuredImage,omitempty"`
	Images        []string `json:"images,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

// Timestamp renders t the way createdAt and updatedAt are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp is the inverse of Timestamp.
func ParseTimestamp(value string) (time.Time, error) {
	return time.Parse(timestampLayout, value)
}

// ValidationError reports a payload field that cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type CreatePostRequest struct {
	Title         string   `json:"title"`
	Excerpt       string   `json:"excerpt"`
	Content       string   `json:"content"`
	Date          string   `json:"date"`
	Author        string   `json:"author"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	ReadTime      *int     `json:"readTime"`
	FeaturedImage string   `json:"featuredImage"`
	Images        []string `json:"images"`
}

func (r CreatePostRequest) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"title", r.Title},
		{"excerpt", r.Excerpt},
		{"content", r.Content},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "is required"}
		}
	}
	if r.ReadTime != nil && *r.ReadTime < 0 {
		return &ValidationError{Field: "readTime", Reason: "must not be negative"}
	}
	return nil
}

// Post builds the post to insert, applying defaults and stamping createdAt.
func (r CreatePostRequest) Post(now time.Time) Post {
	readTime := DefaultReadTime
	if r.ReadTime != nil {
		readTime = *r.ReadTime
	}
	date := strings.TrimSpace(r.Date)
	if date == "" {
		date = now.UTC().Format(dateLayout)
	}
	return Post{
		Title:         r.Title,
		Excerpt:       r.Excerpt,
		Content:       r.Content,
		Date:          date,
		Author:        r.Author,
		Category:      r.Category,
		Tags:          NormalizeTags(r.Tags),
		ReadTime:      readTime,
		FeaturedImage: strings.TrimSpace(r.FeaturedImage),
		Images:        r.Images,
		CreatedAt:     Timestamp(now),
	}
}

// PostUpdate lists the fields an update may overwrite. A nil field is left
// untouched. UpdatedAt is stamped by the handler, never decoded.
type PostUpdate struct {
	Title         *string   `json:"title"`
	Excerpt       *string   `json:"excerpt"`
	Content       *string   `json:"content"`
	Date          *string   `json:"date"`
	Author        *string   `json:"author"`
	Category      *string   `json:"category"`
	Tags          *[]string `json:"tags"`
	ReadTime      *int      `json:"readTime"`
	FeaturedImage *string   `json:"featuredImage"`
	Images        *[]string `json:"images"`
	UpdatedAt     string    `json:"-"`
}

type UpdatePostRequest struct {
	ID string `json:"id"`
	PostUpdate
}

type DeletePostRequest struct {
	ID string `json:"id"`
}

func (u PostUpdate) Validate() error {
	nonEmpty := []struct {
		field string
		value *string
	}{
		{"title", u.Title},
		{"excerpt", u.Excerpt},
		{"content", u.Content},
	}
	for _, f := range nonEmpty {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "must not be empty"}
		}
	}
	if u.ReadTime != nil && *u.ReadTime < 0 {
		return &ValidationError{Field: "readTime", Reason: "must not be negative"}
	}
	return nil
}

// Apply merges the supplied fields into p. ID and CreatedAt are never touched.
func (u PostUpdate) Apply(p *Post) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Excerpt != nil {
		p.Excerpt = *u.Excerpt
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Date != nil {
		p.Date = *u.Date
	}
	if u.Author != nil {
		p.Author = *u.Author
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Tags != nil {
		p.Tags = NormalizeTags(*u.Tags)
	}
	if u.ReadTime != nil {
		p.ReadTime = *u.ReadTime
	}
	if u.FeaturedImage != nil {
		p.FeaturedImage = *u.FeaturedImage
	}
	if u.Images != nil {
		p.Images = append([]string(nil), (*u.Images)...)
	}
	if u.UpdatedAt != "" {
		p.UpdatedAt = u.UpdatedAt
	}
}

// NormalizeTags trims every tag and drops blank ones. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}
