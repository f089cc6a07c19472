package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// PageFetcher reads product data straight from the page's own markup:
// OpenGraph and product meta tags, falling back to <title> and the first
// <img>. It is used when no ScrapingBee key is configured.
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewPageFetcher creates a direct page backend
func NewPageFetcher(client *http.Client) *PageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &PageFetcher{
		client:    client,
		userAgent: "Mozilla/5.0 (compatible; giftlist/1.0)",
	}
}

func (f *PageFetcher) Name() string {
	return "page"
}

func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (*Extracted, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build page request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, &ExtractionError{Message: fmt.Sprintf("page returned HTTP %d", resp.StatusCode)}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, &ExtractionError{Message: "page is not valid HTML"}
	}

	extracted := extractFromDocument(doc)
	if extracted.Name == "" {
		return nil, &ExtractionError{Message: "no product information found on page"}
	}
	return extracted, nil
}

// extractFromDocument walks a parsed page collecting meta tags, the title
// and the first image.
func extractFromDocument(doc *html.Node) *Extracted {
	meta := make(map[string]string)
	var title, firstImg string

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := strings.ToLower(attr(n, "property"))
				if key == "" {
					key = strings.ToLower(attr(n, "name"))
				}
				if key == "" {
					key = strings.ToLower(attr(n, "itemprop"))
				}
				if _, seen := meta[key]; key != "" && !seen {
					meta[key] = attr(n, "content")
				}
			case "title":
				if title == "" && n.FirstChild != nil {
					title = n.FirstChild.Data
				}
			case "img":
				if firstImg == "" {
					firstImg = attr(n, "src")
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(meta[k]); v != "" {
				return v
			}
		}
		return ""
	}

	out := &Extracted{
		Name:        first("og:title", "twitter:title", "name"),
		ImageURL:    first("og:image", "og:image:url", "twitter:image", "image"),
		Description: first("og:description", "description", "twitter:description"),
		Store:       first("og:site_name"),
	}
	if out.Name == "" {
		out.Name = title
	}
	if out.ImageURL == "" {
		out.ImageURL = firstImg
	}
	if price := first("product:price:amount", "og:price:amount", "price"); price != "" {
		out.Price = price
	}
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
