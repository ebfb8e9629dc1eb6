// Package post defines the blog post entity, its lifecycle states, the
// rules deciding who may read or change a post, and the storage contract
// every backend implements.
package post

import (
	"fmt"
	"strings"
	"time"
)

// UntitledTitle replaces a blank title when a buffer is autosaved.
const UntitledTitle = "Untitled"

// Status is the lifecycle state of a post.
type Status uint8

const (
	Draft Status = iota
	Published
)

func (s Status) String() string {
	switch s {
	case Draft:
		return "draft"
	case Published:
		return "published"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// ParseStatus converts the persisted form of a status back into a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "draft":
		return Draft, nil
	case "published":
		return Published, nil
	}
	return Draft, fmt.Errorf("unknown post status %q", s)
}

func (s Status) MarshalText() ([]byte, error) {
	if s != Draft && s != Published {
		return nil, fmt.Errorf("unknown post status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type Post struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	UserID      string     `json:"user_id"`
}

func (p Post) IsPublished() bool {
	return p.Status == Published
}

// Edit is the payload written by Create and Update.
type Edit struct {
	Title   string
	Content string
	Status  Status

	// Republish stamps PublishedAt with the current time even when the
	// post is already published.
	Republish bool
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
