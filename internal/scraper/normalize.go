package scraper

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	priceNumber = regexp.MustCompile(`[\d,]+\.?\d*`)
)

// retailers maps a host fragment to the store name shown on items.
// Order matters: the first fragment contained in the host wins.
var retailers = []struct {
	fragment string
	name     string
}{
	{"amazon", "Amazon"},
	{"ebay", "eBay"},
	{"walmart", "Walmart"},
	{"target", "Target"},
	{"bestbuy", "Best Buy"},
	{"homedepot", "Home Depot"},
	{"lowes", "Lowe's"},
	{"etsy", "Etsy"},
}

var shopPlatforms = []string{
	"amazon", "ebay", "walmart", "target", "bestbuy",
	"homedepot", "lowes", "etsy", "shopify", "bigcommerce",
}

// CleanText trims s and collapses runs of whitespace into single spaces
func CleanText(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ExtractPrice turns whatever a backend reported as price into a number.
// Numbers pass through; strings yield their first numeric run with thousands
// separators removed ("$1,299.99 USD" -> 1299.99). Anything else is nil.
func ExtractPrice(v any) *float64 {
	var f float64
	switch p := v.(type) {
	case nil:
		return nil
	case float64:
		f = p
	case int:
		f = float64(p)
	case json.Number:
		parsed, err := p.Float64()
		if err != nil {
			return ExtractPrice(p.String())
		}
		f = parsed
	case string:
		match := priceNumber.FindString(p)
		if match == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return nil
	}
	return &f
}

// NormalizeImageURL resolves an image reference against the page it came
// from. raw may be an absolute URL, protocol-relative, root-relative, a bare
// relative path or a whole <img> tag, in which case its src is used.
func NormalizeImageURL(raw, pageURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "<img") {
		if src := imgSrc(raw); src != "" {
			raw = src
		}
	}

	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http") {
		return raw
	}

	origin := originOf(pageURL)
	if origin == "" {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}
	return origin + "/" + raw
}

// imgSrc returns the src attribute of the first <img> element in fragment.
func imgSrc(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "src" {
					return strings.TrimSpace(attr.Val)
				}
			}
		}
	}
}

func originOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func hostOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// StoreFromURL names the shop behind pageURL: a known retailer's display
// name, otherwise the first label of the host without "www.".
func StoreFromURL(pageURL string) string {
	host := hostOf(pageURL)
	if host == "" {
		return ""
	}
	for _, r := range retailers {
		if strings.Contains(host, r.fragment) {
			return r.name
		}
	}
	host = strings.Replace(host, "www.", "", 1)
	label, _, _ := strings.Cut(host, ".")
	return label
}

// IsKnownRetailer reports whether pageURL points at a recognised shop
// platform. It is a hint for callers and never blocks a lookup.
func IsKnownRetailer(pageURL string) bool {
	host := hostOf(pageURL)
	if host == "" {
		return false
	}
	for _, site := range shopPlatforms {
		if strings.Contains(host, site) {
			return true
		}
	}
	return false
}
