package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Conversion is a rendered result kept by a front end so the user can
// expand, collapse or copy it after the request has finished.
type Conversion struct {
	// ID is the opaque key the front ends link to.
	ID string `json:"id"`

	URL      string    `json:"url"`
	Markdown string    `json:"markdown"`
	Source   Source    `json:"source"`
	ChatID   int64     `json:"chat_id,omitempty"`
	Created  time.Time `json:"created"`
}

// NewConversion builds a Conversion from a successful result.
func NewConversion(id string, res Result) Conversion {
	return Conversion{
		ID:       id,
		URL:      res.URL,
		Markdown: res.Text,
		Source:   res.Source,
		Created:  time.Now(),
	}
}

// PreviewLimits bounds the collapsed view of a result.
type PreviewLimits struct {
	Runes int
	Lines int
}

// Preview clips text to at most maxRunes runes and maxLines lines.
// A non-positive limit disables that bound.
func Preview(text string, maxRunes, maxLines int) (string, bool) {
	out := text
	truncated := false

	if maxLines > 0 {
		idx := 0
		for i := 0; i < maxLines; i++ {
			next := strings.IndexByte(out[idx:], '\n')
			if next < 0 {
				idx = -1
				break
			}
			idx += next + 1
		}
		if idx > 0 && idx < len(out) {
			out = strings.TrimRight(out[:idx], "\n")
			truncated = true
		}
	}

	if maxRunes > 0 && utf8.RuneCountInString(out) > maxRunes {
		n := 0
		for i := range out {
			if n == maxRunes {
				out = out[:i]
				break
			}
			n++
		}
		truncated = true
	}

	return out, truncated
}
