package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contently/internal/domain"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestScraper points an APIScraper at a fake extraction API.
func newTestScraper(t *testing.T, handler http.HandlerFunc) (*APIScraper, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIScraper("test-key", testLogger(), WithEndpoint(srv.URL+"/scrape"), WithHost("scraper.test")), srv
}

func requireFailure(t *testing.T, err error, kind domain.FailureKind) *domain.Failure {
	t.Helper()
	var f *domain.Failure
	require.True(t, errors.As(err, &f), "expected *domain.Failure, got %T: %v", err, err)
	assert.Equal(t, kind, f.Kind)
	return f
}

func TestScrape_SendsRequest(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "scraper.test", r.Header.Get("x-rapidapi-host"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"url": "https://example.com"}, body)

		w.Write([]byte(`{"markdown":"# Example"}`))
	})

	_, err := s.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
}

func TestScrape_Markdown(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"markdown":"# Example\n\nBody","content":"Example Body"}`))
	})

	res, err := s.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "# Example\n\nBody", res.Text)
	assert.Equal(t, domain.SourceMarkdown, res.Source)
	assert.Equal(t, "https://example.com", res.URL)
}

func TestScrape_ContentFallback(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":"Example Body","title":"ignored"}`))
	})

	res, err := s.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Example Body", res.Text)
	assert.Equal(t, domain.SourceContent, res.Source)
}

func TestScrape_EmptyMarkdownIsSuccess(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markdown":""}`))
	})

	res, err := s.Scrape(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

func TestScrape_MalformedFieldIsIgnored(t *testing.T) {
	bodies := map[string]string{
		"object markdown": `{"markdown":{"text":"x"},"content":"body"}`,
		"number markdown": `{"markdown":7,"content":"body"}`,
		"null markdown":   `{"markdown":null,"content":"body"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			res, err := s.Scrape(context.Background(), "https://example.com")
			require.NoError(t, err)
			assert.Equal(t, "body", res.Text)
			assert.Equal(t, domain.SourceContent, res.Source)
		})
	}
}

func TestScrape_EmptyResponse(t *testing.T) {
	bodies := map[string]string{
		"empty body":      "",
		"whitespace":      "  \n",
		"null":            "null",
		"no fields":       `{"title":"x"}`,
		"not an object":   `"just a string"`,
		"wrong type":      `{"markdown":42}`,
		"null fields":     `{"markdown":null,"content":null}`,
		"array":           `["markdown"]`,
		"not json at all": "<html></html>",
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			_, err := s.Scrape(context.Background(), "https://example.com")
			f := requireFailure(t, err, domain.EmptyResponse)
			assert.Equal(t, http.StatusOK, f.StatusCode)
			assert.Equal(t, "No data received from the API", err.Error())
		})
	}
}

func TestScrape_APIErrorMessage(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"You are not subscribed to this API."}`))
	})

	_, err := s.Scrape(context.Background(), "https://example.com")
	f := requireFailure(t, err, domain.APIError)
	assert.Equal(t, "You are not subscribed to this API.", f.Message)
	assert.Equal(t, http.StatusForbidden, f.StatusCode)
	assert.Equal(t, "API Error: You are not subscribed to this API.", err.Error())
}

func TestScrape_APIErrorWhitespaceMessage(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"  "}`))
	})

	_, err := s.Scrape(context.Background(), "https://example.com")
	f := requireFailure(t, err, domain.APIError)
	assert.Equal(t, "  ", f.Message)
	assert.Equal(t, "API Error:   ", err.Error())
}

func TestScrape_APIErrorFallback(t *testing.T) {
	bodies := []string{"", `{"error":"boom"}`, "internal error", `{"message":""}`, `{"message":null}`, `{"message":42}`}

	for _, body := range bodies {
		s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(body))
		})

		_, err := s.Scrape(context.Background(), "https://example.com")
		f := requireFailure(t, err, domain.APIError)
		assert.Equal(t, domain.UnknownAPIErrorMessage, f.Message, "body %q", body)
		assert.Equal(t, "API Error: Unknown API error", err.Error())
	}
}

func TestScrape_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))
	endpoint := srv.URL + "/scrape"
	srv.Close()

	s := NewAPIScraper("test-key", testLogger(), WithEndpoint(endpoint))
	_, err := s.Scrape(context.Background(), "https://example.com")

	f := requireFailure(t, err, domain.TransportError)
	require.Error(t, f.Err)
	assert.Equal(t, f.Err.Error(), f.Message)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to scrape website: "))
	assert.NotContains(t, err.Error(), "API Error")
}

func TestScrape_ContextCancelled(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markdown":"late"}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scrape(ctx, "https://example.com")
	f := requireFailure(t, err, domain.TransportError)
	assert.ErrorIs(t, f, context.Canceled)
}

func TestScrape_EmptyURL(t *testing.T) {
	var calls atomic.Int32
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := s.Scrape(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyURL)
	assert.Zero(t, calls.Load())
}

func TestScrape_CallsAreIndependent(t *testing.T) {
	var calls atomic.Int32
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req domain.ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.URL == "https://broken.example" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"upstream failed"}`))
			return
		}
		w.Write([]byte(`{"markdown":"ok for ` + req.URL + `"}`))
	})

	_, err := s.Scrape(context.Background(), "https://broken.example")
	requireFailure(t, err, domain.APIError)

	res, err := s.Scrape(context.Background(), "https://fine.example")
	require.NoError(t, err)
	assert.Equal(t, "ok for https://fine.example", res.Text)

	_, err = s.Scrape(context.Background(), "https://broken.example")
	requireFailure(t, err, domain.APIError)

	assert.Equal(t, int32(3), calls.Load(), "one upstream call per invocation")
}

func TestNewAPIScraper_Defaults(t *testing.T) {
	s := NewAPIScraper("k", testLogger())
	assert.Equal(t, DefaultEndpoint, s.endpoint)
	assert.Equal(t, DefaultHost, s.host)
	assert.Zero(t, s.http.Timeout)

	custom := &http.Client{}
	s = NewAPIScraper("k", testLogger(), WithHTTPClient(custom))
	assert.Same(t, custom, s.http)
}

func TestNewAPIScraper_TimeoutOrder(t *testing.T) {
	shared := &http.Client{}

	before := NewAPIScraper("k", testLogger(), WithTimeout(3*time.Second), WithHTTPClient(shared))
	after := NewAPIScraper("k", testLogger(), WithHTTPClient(shared), WithTimeout(3*time.Second))

	assert.Equal(t, 3*time.Second, before.http.Timeout)
	assert.Equal(t, 3*time.Second, after.http.Timeout)
	assert.Zero(t, shared.Timeout, "caller's client is left untouched")

	plain := NewAPIScraper("k", testLogger(), WithTimeout(time.Second))
	assert.Equal(t, time.Second, plain.http.Timeout)
}
