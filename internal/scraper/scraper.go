// Package scraper prefills item fields from a product page URL.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/msawatzky/christmas-list/internal/metrics"
)

// ErrInvalidURL is returned for anything that is not an absolute http(s) URL
var ErrInvalidURL = errors.New("product URL must be an absolute http(s) URL")

// Product is the normalised result of a lookup
type Product struct {
	URL           string   `json:"url"`
	Name          string   `json:"name,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Description   string   `json:"description,omitempty"`
	Store         string   `json:"store,omitempty"`
	KnownRetailer bool     `json:"known_retailer"`
	Success       bool     `json:"success"`
	Error         string   `json:"error,omitempty"`
}

// Extracted is what a backend pulled out of a page before normalisation.
// Price is left untyped because backends report numbers and free text alike.
type Extracted struct {
	Name        string
	Price       any
	ImageURL    string
	Description string
	Store       string
}

// ExtractionError is a backend saying it could not read the page. It turns
// into an unsuccessful Product rather than a failed call.
type ExtractionError struct {
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}

// Fetcher pulls raw product fields from a page
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, pageURL string) (*Extracted, error)
}

// Scraper wraps a Fetcher with URL checks, normalisation and a result cache
type Scraper struct {
	fetcher Fetcher
	cache   *cache.Cache
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// New creates a Scraper. Successful results are kept for ttl; ttl <= 0
// disables caching. m may be nil.
func New(fetcher Fetcher, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Scraper {
	s := &Scraper{
		fetcher: fetcher,
		logger:  logger,
		metrics: m,
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Backend names the fetcher in use
func (s *Scraper) Backend() string {
	return s.fetcher.Name()
}

// Scrape looks up pageURL. Backend-reported extraction failures come back as
// a Product with Success false; transport failures are returned as errors.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*Product, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, pageURL)
	}
	pageURL = u.String()

	if s.cache != nil {
		if cached, ok := s.cache.Get(pageURL); ok {
			s.observe("cached")
			p := *cached.(*Product)
			return &p, nil
		}
	}

	raw, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		var extractErr *ExtractionError
		if errors.As(err, &extractErr) {
			s.observe("unreadable")
			s.logger.WithFields(logrus.Fields{
				"url":     pageURL,
				"backend": s.fetcher.Name(),
			}).WithError(err).Info("Product page could not be read")
			return &Product{
				URL:           pageURL,
				Store:         StoreFromURL(pageURL),
				KnownRetailer: IsKnownRetailer(pageURL),
				Error:         extractErr.Message,
			}, nil
		}
		s.observe("error")
		return nil, fmt.Errorf("failed to fetch product page: %w", err)
	}

	product := normalize(raw, pageURL)
	if s.cache != nil {
		s.cache.SetDefault(pageURL, product)
	}
	s.observe("ok")

	s.logger.WithFields(logrus.Fields{
		"url":     pageURL,
		"backend": s.fetcher.Name(),
		"store":   product.Store,
	}).Debug("Product page scraped")

	out := *product
	return &out, nil
}

func normalize(raw *Extracted, pageURL string) *Product {
	store := CleanText(raw.Store)
	if store == "" {
		store = StoreFromURL(pageURL)
	}
	return &Product{
		URL:           pageURL,
		Name:          CleanText(raw.Name),
		Price:         ExtractPrice(raw.Price),
		ImageURL:      NormalizeImageURL(raw.ImageURL, pageURL),
		Description:   CleanText(raw.Description),
		Store:         store,
		KnownRetailer: IsKnownRetailer(pageURL),
		Success:       true,
	}
}

func (s *Scraper) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.Scrapes.WithLabelValues(s.fetcher.Name(), outcome).Inc()
	}
}
