package entity

import "time"

// Credentials identify the LMS instance and the caller. The token is forwarded as-is.
type Credentials struct {
	BaseURL string `json:"url"`
	Token   string `json:"token"`
}

func (c *Credentials) Valid() bool {
	return c != nil && c.BaseURL != "" && c.Token != ""
}

type Term struct {
	Name    string     `json:"name"`
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// Current reports whether now falls inside the term dates. Terms without both dates are never current.
func (t *Term) Current(now time.Time) bool {
	if t == nil || t.StartAt == nil || t.EndAt == nil {
		return false
	}

	return !now.Before(*t.StartAt) && !now.After(*t.EndAt)
}

type Course struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
	Term       *Term  `json:"term,omitempty"`
	Published  bool   `json:"published"`
}

func (c *Course) TermName() string {
	if c.Term == nil {
		return ""
	}

	return c.Term.Name
}

// Enrollment is only used to collect course ids.
type Enrollment struct {
	CourseID int64 `json:"course_id"`
}
