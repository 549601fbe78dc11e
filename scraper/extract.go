package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog-watcher/pkg/watcher"
)

// Fallback values for fields that no selector resolved.
const (
	UntitledProduct  = "Untitled"
	PriceUnavailable = "Price unavailable"
)

// ErrEmptyProduct is reported for a listing container with no usable content.
var ErrEmptyProduct = errors.New("product container has no title, link or price")

// Selector strategies, tried in order. The first one that matches anything wins.
var (
	containerSelectors = []string{
		"div.product-miniature",
		"article.product-miniature",
		"div.js-product-miniature",
	}
	titleSelectors = []string{
		"h2.product-title",
		"h3.product-title",
		"a.product-title",
		`a[itemprop="name"]`,
	}
	priceSelectors = []string{
		"span.price",
		`span[itemprop="price"]`,
	}
	availabilitySelectors = []string{
		"span.product-availability",
		"div.product-availability",
	}
	outOfStockMarkers = []string{"agotado", "esgotado", "out of stock", "sold out"}
)

// Result is the outcome of extracting one listing. Exactly one of Product or Err is meaningful.
type Result struct {
	Err     error
	Product watcher.Product
	Index   int
}

// Extractor turns catalog HTML into product listings.
type Extractor struct{}

// NewExtractor creates an extractor for PrestaShop-style product grids.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract parses body and returns one Result per listing container, in page order.
// pageURL is used to resolve relative product links. An error is returned only when the
// document itself cannot be parsed.
func (e *Extractor) Extract(pageURL string, body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	var items *goquery.Selection
	for _, sel := range containerSelectors {
		items = doc.Find(sel)
		if items.Length() > 0 {
			break
		}
	}

	results := make([]Result, 0, items.Length())
	items.Each(func(i int, s *goquery.Selection) {
		p, err := extractProduct(s, base)
		results = append(results, Result{Index: i, Product: p, Err: err})
	})
	return results, nil
}

func extractProduct(s *goquery.Selection, base *url.URL) (p watcher.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract product: %v", r)
		}
	}()

	title := firstText(s, titleSelectors)
	price := firstText(s, priceSelectors)
	link := ""
	if href, ok := s.Find("a[href]").First().Attr("href"); ok {
		link = resolveLink(base, strings.TrimSpace(href))
	}

	if title == "" && price == "" && link == "" {
		return watcher.Product{}, ErrEmptyProduct
	}

	if title == "" {
		title = UntitledProduct
	}
	if price == "" {
		price = PriceUnavailable
	}

	availability := watcher.Available
	if marker := firstSelection(s, availabilitySelectors); marker != nil {
		text := strings.ToLower(marker.Text())
		for _, m := range outOfStockMarkers {
			if strings.Contains(text, m) {
				availability = watcher.OutOfStock
				break
			}
		}
	}

	return watcher.Product{
		Title:        title,
		Link:         link,
		Price:        price,
		Availability: availability,
	}, nil
}

// firstSelection returns the first element matched by the earliest selector that matches.
func firstSelection(s *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		found := s.Find(sel).First()
		if found.Length() > 0 {
			return found
		}
	}
	return nil
}

func firstText(s *goquery.Selection, selectors []string) string {
	found := firstSelection(s, selectors)
	if found == nil {
		return ""
	}
	return strings.Join(strings.Fields(found.Text()), " ")
}

func resolveLink(base *url.URL, href string) string {
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
