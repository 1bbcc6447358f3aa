package scraper

import (
	"context"

	"contently/internal/domain"
)

// Scraper turns a URL into Markdown through an extraction service.
type Scraper interface {
	// Scrape performs exactly one call for the given URL. Failures are
	// returned as *domain.Failure unless the input itself is rejected.
	Scrape(ctx context.Context, url string) (domain.Result, error)
}
