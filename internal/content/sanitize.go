package content

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"

	"github.com/BorisDmv/portfolio-api/internal/models"
)

// Sanitizer scrubs the HTML body of a post. Title and excerpt are plain text
// rendered escaped by the client and are never rewritten.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer keeps the markup the admin editor produces: class and style
// attributes, embedded iframes and data: images. Scripts and event handlers
// are dropped.
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "style").Globally()
	p.AllowDataURIImages()

	p.AllowElements("iframe")
	p.AllowAttrs("src", "title", "allowfullscreen").OnElements("iframe")
	p.AllowAttrs("width", "height", "frameborder").Matching(bluemonday.Integer).OnElements("iframe")
	p.AllowAttrs("allow").Matching(regexp.MustCompile(`^(([\p{L}\p{N}_-]+)(; )?)+$`)).OnElements("iframe")

	return &Sanitizer{policy: p}
}

func (s *Sanitizer) HTML(body string) string {
	return s.policy.Sanitize(body)
}

func (s *Sanitizer) SanitizeCreate(req *models.CreatePostRequest) {
	req.Content = s.HTML(req.Content)
}

func (s *Sanitizer) SanitizeUpdate(u *models.PostUpdate) {
	if u.Content != nil {
		v := s.HTML(*u.Content)
		u.Content = &v
	}
}
