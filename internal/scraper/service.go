package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"contently/internal/domain"
)

const (
	DefaultEndpoint = "https://ai-content-scraper.p.rapidapi.com/scrape"
	DefaultHost     = "ai-content-scraper.p.rapidapi.com"
)

// ErrEmptyURL is returned before any network call when the URL is blank.
var ErrEmptyURL = errors.New("url must not be empty")

// APIScraper implements Scraper against the RapidAPI content scraper.
type APIScraper struct {
	apiKey   string
	endpoint string
	host     string
	http     *http.Client
	timeout  time.Duration
	log      logrus.FieldLogger
}

// Option configures an APIScraper.
type Option func(*APIScraper)

// WithEndpoint overrides the POST target.
func WithEndpoint(endpoint string) Option {
	return func(s *APIScraper) {
		s.endpoint = endpoint
	}
}

// WithHost overrides the x-rapidapi-host header.
func WithHost(host string) Option {
	return func(s *APIScraper) {
		s.host = host
	}
}

// WithTimeout sets a client timeout. Zero leaves the transport default.
// It applies whatever the option order and never modifies a client
// passed through WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(s *APIScraper) {
		s.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *APIScraper) {
		s.http = hc
	}
}

// NewAPIScraper creates a scraper authenticating with apiKey.
func NewAPIScraper(apiKey string, logger logrus.FieldLogger, opts ...Option) *APIScraper {
	s := &APIScraper{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		host:     DefaultHost,
		http:     &http.Client{},
		log:      logger.WithField("component", "scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Apply the timeout on a copy so a shared client keeps its own settings
	if s.timeout > 0 && s.http.Timeout != s.timeout {
		hc := *s.http
		hc.Timeout = s.timeout
		s.http = &hc
	}
	return s
}

// Scrape posts {"url": url} to the extraction API and normalizes the answer.
func (s *APIScraper) Scrape(ctx context.Context, url string) (domain.Result, error) {
	if strings.TrimSpace(url) == "" {
		return domain.Result{}, ErrEmptyURL
	}
	log := s.log.WithField("url", url)
	log.Info("Scraping website")

	body, err := json.Marshal(domain.ScrapeRequest{URL: url})
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", s.apiKey)
	req.Header.Set("x-rapidapi-host", s.host)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		log.WithError(err).Warn("Extraction API unreachable")
		return domain.Result{}, transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Warn("Failed to read extraction API response")
		return domain.Result{}, transportFailure(err)
	}
	log = log.WithField("status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f := &domain.Failure{
			Kind:       domain.APIError,
			Message:    errorMessage(data),
			StatusCode: resp.StatusCode,
		}
		log.WithField("message", f.Message).Warn("Extraction API returned an error")
		return domain.Result{}, f
	}

	res, err := decodePayload(data, resp.StatusCode)
	if err != nil {
		log.WithError(err).Warn("Extraction API returned no content")
		return domain.Result{}, err
	}
	res.URL = url

	log.WithFields(logrus.Fields{
		"source": res.Source,
		"length": len(res.Text),
	}).Info("Website scraped successfully")
	return res, nil
}

func transportFailure(err error) *domain.Failure {
	return &domain.Failure{
		Kind:    domain.TransportError,
		Message: err.Error(),
		Err:     err,
	}
}

// errorMessage extracts "message" from an error body.
// Any non-empty string is kept as sent, whitespace included.
func errorMessage(data []byte) string {
	fields, err := decodeObject(data)
	if err != nil {
		return domain.UnknownAPIErrorMessage
	}
	msg := stringField(fields, "message")
	if msg == nil || *msg == "" {
		return domain.UnknownAPIErrorMessage
	}
	return *msg
}

// decodePayload turns a 2xx body into a Result. A field that is not a JSON
// string counts as absent, so a malformed markdown does not hide content.
func decodePayload(data []byte, status int) (domain.Result, error) {
	empty := &domain.Failure{Kind: domain.EmptyResponse, StatusCode: status}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Result{}, empty
	}

	fields, err := decodeObject(data)
	if err != nil {
		empty.Err = err
		return domain.Result{}, empty
	}

	p := domain.Payload{
		Markdown: stringField(fields, "markdown"),
		Content:  stringField(fields, "content"),
	}
	text, src, ok := p.Text()
	if !ok {
		return domain.Result{}, empty
	}
	return domain.Result{Text: text, Source: src}, nil
}

// decodeObject parses a JSON object without committing to field types.
// A literal null yields an empty map.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// stringField returns the named field when it holds a JSON string.
func stringField(fields map[string]json.RawMessage, name string) *string {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
