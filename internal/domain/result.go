package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ScrapeRequest is a single user submission.
type ScrapeRequest struct {
	URL string `json:"url"`
}

// ErrInvalidURL is returned by ValidateURL.
var ErrInvalidURL = errors.New("please enter a valid absolute URL")

// ValidateURL checks that raw is an absolute URL with a host and returns it
// trimmed. Front ends call it before dispatching a request.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return "", ErrInvalidURL
	}
	return raw, nil
}

// Payload is the success body returned by the extraction API.
// Either field may be missing; a nil pointer means absent.
type Payload struct {
	Markdown *string `json:"markdown,omitempty"`
	Content  *string `json:"content,omitempty"`
}

// Source names the payload field a result was taken from.
type Source string

const (
	SourceMarkdown Source = "markdown"
	SourceContent  Source = "content"
)

// Text picks the text to display. A non-empty markdown field wins, then any
// content field, then an empty markdown field. ok is false when neither
// field is present.
func (p Payload) Text() (text string, src Source, ok bool) {
	switch {
	case p.Markdown != nil && *p.Markdown != "":
		return *p.Markdown, SourceMarkdown, true
	case p.Content != nil:
		return *p.Content, SourceContent, true
	case p.Markdown != nil:
		return "", SourceMarkdown, true
	}
	return "", "", false
}

// Result is a successful scrape.
type Result struct {
	URL    string `json:"url"`
	Text   string `json:"markdown"`
	Source Source `json:"source"`
}

// FailureKind classifies why a scrape failed.
type FailureKind int

const (
	// EmptyResponse: the call completed but carried no usable payload.
	EmptyResponse FailureKind = iota + 1
	// APIError: the service answered with an error status.
	APIError
	// TransportError: the call did not complete.
	TransportError
)

func (k FailureKind) String() string {
	switch k {
	case EmptyResponse:
		return "empty_response"
	case APIError:
		return "api_error"
	case TransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// UnknownAPIErrorMessage is used when an error payload has no message.
const UnknownAPIErrorMessage = "Unknown API error"

const emptyResponseMessage = "No data received from the API"

// Failure is the typed error returned by the scraper. Error() is the
// display string; callers needing structure use errors.As.
type Failure struct {
	Kind FailureKind
	// Message is the API's message for APIError and the transport error
	// text for TransportError.
	Message string
	// StatusCode is set for APIError and EmptyResponse.
	StatusCode int
	Err        error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case EmptyResponse:
		return emptyResponseMessage
	case APIError:
		msg := f.Message
		if msg == "" {
			msg = UnknownAPIErrorMessage
		}
		return "API Error: " + msg
	case TransportError:
		return "Failed to scrape website: " + f.Message
	default:
		return f.Message
	}
}

func (f *Failure) Unwrap() error { return f.Err }
