package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"contently/internal/domain"
	"contently/internal/scraper"
	"contently/internal/storage"
)

// Handler serves the page, the form submission and the JSON API.
type Handler struct {
	scraper scraper.Scraper
	repo    storage.Repository
	preview domain.PreviewLimits
	version string
	log     logrus.FieldLogger
	newID   func() string
}

// NewHandler creates a Handler.
func NewHandler(s scraper.Scraper, repo storage.Repository, preview domain.PreviewLimits, version string, logger logrus.FieldLogger) *Handler {
	return &Handler{
		scraper: s,
		repo:    repo,
		preview: preview,
		version: version,
		log:     logger.WithField("component", "web"),
		newID:   uuid.NewString,
	}
}

type resultView struct {
	ID        string
	URL       string
	Text      string
	Truncated bool
	Expanded  bool
}

type pageData struct {
	URL          string
	Result       *resultView
	Notification *domain.Notification
	ToastMillis  int64
}

// --- Rendering ---

func (h *Handler) render(c *gin.Context, status int, data pageData) {
	data.ToastMillis = domain.ToastDuration.Milliseconds()
	c.HTML(status, "index.html", data)
}

func (h *Handler) view(conv domain.Conversion, expanded bool) *resultView {
	v := &resultView{ID: conv.ID, URL: conv.URL, Text: conv.Markdown, Expanded: expanded}
	preview, truncated := domain.Preview(conv.Markdown, h.preview.Runes, h.preview.Lines)
	v.Truncated = truncated
	if truncated && !expanded {
		v.Text = preview
	}
	return v
}

// convert runs one scrape and keeps the result for later expansion.
// A storage failure is logged; the conversion is still returned without an ID.
func (h *Handler) convert(ctx context.Context, url string) (domain.Conversion, error) {
	// 1. One call to the extraction API
	res, err := h.scraper.Scrape(ctx, url)
	if err != nil {
		return domain.Conversion{}, err
	}

	// 2. Keep it for Read More and copy
	conv := domain.NewConversion(h.newID(), res)
	if err := h.repo.SaveConversion(ctx, conv); err != nil {
		h.log.WithError(err).WithField("url", url).Error("Failed to keep conversion")
		conv.ID = ""
	}
	return conv, nil
}

// --- Page Handlers ---

// Index renders the landing page.
func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, pageData{})
}

// SubmitForm handles the converter form.
func (h *Handler) SubmitForm(c *gin.Context) {
	raw := c.PostForm("url")
	url, err := domain.ValidateURL(raw)
	if err != nil {
		n := domain.NotifyError(err)
		h.render(c, http.StatusBadRequest, pageData{URL: raw, Notification: &n})
		return
	}

	conv, err := h.convert(c.Request.Context(), url)
	if err != nil {
		h.log.WithError(err).WithField("url", url).Warn("Scraping error")
		_ = c.Error(err)
		n := domain.NotifyError(err)
		h.render(c, http.StatusOK, pageData{URL: url, Notification: &n})
		return
	}

	// Without an ID there is nothing to expand later, so show it all now
	n := domain.NotifyScraped
	h.render(c, http.StatusOK, pageData{
		URL:          url,
		Result:       h.view(conv, conv.ID == ""),
		Notification: &n,
	})
}

// ShowResult renders a stored conversion, collapsed unless ?expanded=1.
func (h *Handler) ShowResult(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		n := domain.NotifyError(errors.New("result expired or not found"))
		h.render(c, http.StatusNotFound, pageData{Notification: &n})
		return
	}
	h.render(c, http.StatusOK, pageData{
		URL:    conv.URL,
		Result: h.view(conv, c.Query("expanded") == "1"),
	})
}

// RawResult returns the full Markdown for copying.
func (h *Handler) RawResult(c *gin.Context) {
	conv, ok := h.lookup(c)
	if !ok {
		c.String(http.StatusNotFound, "result expired or not found")
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(conv.Markdown))
}

func (h *Handler) lookup(c *gin.Context) (domain.Conversion, bool) {
	conv, err := h.repo.GetConversion(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			_ = c.Error(err)
		}
		return domain.Conversion{}, false
	}
	return conv, true
}

// --- JSON API ---

// APIScrape is the JSON variant of SubmitForm.
func (h *Handler) APIScrape(c *gin.Context) {
	var req domain.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	url, err := domain.ValidateURL(req.URL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv, err := h.convert(c.Request.Context(), url)
	if err != nil {
		_ = c.Error(err)
		// Upstream failures are a bad gateway; anything else is ours
		var f *domain.Failure
		if errors.As(err, &f) {
			body := gin.H{"error": f.Error(), "kind": f.Kind.String()}
			if f.StatusCode != 0 {
				body["status"] = f.StatusCode
			}
			c.JSON(http.StatusBadGateway, body)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       conv.ID,
		"url":      conv.URL,
		"markdown": conv.Markdown,
		"source":   conv.Source,
	})
}

// Health returns service health status.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
