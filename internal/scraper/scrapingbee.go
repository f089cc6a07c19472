package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultScrapingBeeURL is the public ScrapingBee endpoint
const DefaultScrapingBeeURL = "https://app.scrapingbee.com/api/v1/"

// extractRules asks the AI extractor for the fields an item needs.
var extractRules = map[string]string{
	"name":        "Extract the product name or title",
	"price":       "Extract the product price as a number",
	"imageUrl":    "Extract the main product image URL",
	"description": "Extract a brief product description",
}

// ScrapingBee fetches pages through the ScrapingBee AI extraction API
type ScrapingBee struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewScrapingBee creates a ScrapingBee backend. An empty endpoint uses
// DefaultScrapingBeeURL.
func NewScrapingBee(apiKey, endpoint string, client *http.Client) *ScrapingBee {
	if endpoint == "" {
		endpoint = DefaultScrapingBeeURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &ScrapingBee{apiKey: apiKey, endpoint: endpoint, client: client}
}

func (b *ScrapingBee) Name() string {
	return "scrapingbee"
}

type scrapingBeeResponse struct {
	Error       string `json:"error"`
	Name        string `json:"name"`
	Price       any    `json:"price"`
	ImageURL    string `json:"imageUrl"`
	Description string `json:"description"`
}

func (b *ScrapingBee) Fetch(ctx context.Context, pageURL string) (*Extracted, error) {
	rules, err := json.Marshal(extractRules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extract rules: %w", err)
	}

	endpoint, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scrapingbee endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("api_key", b.apiKey)
	q.Set("url", pageURL)
	q.Set("ai_extract_rules", string(rules))
	q.Set("render_js", "false")
	q.Set("premium_proxy", "false")
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scrapingbee request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call scrapingbee: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read scrapingbee response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrapingbee returned HTTP %d", resp.StatusCode)
	}

	var decoded scrapingBeeResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode scrapingbee response: %w", err)
	}
	if decoded.Error != "" {
		return nil, &ExtractionError{Message: decoded.Error}
	}

	return &Extracted{
		Name:        decoded.Name,
		Price:       decoded.Price,
		ImageURL:    decoded.ImageURL,
		Description: decoded.Description,
	}, nil
}
