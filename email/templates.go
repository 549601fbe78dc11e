package email

import (
	"fmt"
	"strings"

	"catalog-watcher/pkg/watcher"
)

func (s *Sender) formatAlertBody(product watcher.Product, keywords []string) string {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	b.WriteString("<style>\n")
	b.WriteString("body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background: #fff; }\n")
	b.WriteString(".header { background: #4caf50; color: #fff; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }\n")
	b.WriteString(".content { background: #f5f5f5; padding: 20px; border-radius: 0 0 8px 8px; }\n")
	b.WriteString(".available { color: #2e7d32; font-weight: 600; }\n")
	b.WriteString(".out-of-stock { color: #c62828; font-weight: 600; }\n")
	b.WriteString(".button { background: #4caf50; color: #fff; padding: 12px 28px; text-decoration: none; border-radius: 5px; display: inline-block; margin: 20px 0; }\n")
	b.WriteString(".footer { font-size: 0.8em; color: #7f8c8d; }\n")
	b.WriteString("@media (prefers-color-scheme: dark) {\n")
	b.WriteString("body { background: #1a1a1a; color: #e0e0e0; }\n")
	b.WriteString(".content { background: #262626; }\n")
	b.WriteString(".footer { color: #a0a0a0; }\n")
	b.WriteString("}\n")
	b.WriteString("</style>\n</head>\n<body>\n")

	b.WriteString("<div class=\"header\">\n<h1>Product available!</h1>\n</div>\n")

	b.WriteString("<div class=\"content\">\n")
	b.WriteString(fmt.Sprintf("<h2>%s</h2>\n", escapeHTML(product.Title)))
	b.WriteString(fmt.Sprintf("<p><strong>Price:</strong> %s</p>\n", escapeHTML(product.Price)))

	statusClass := "available"
	if product.Availability == watcher.OutOfStock {
		statusClass = "out-of-stock"
	}
	b.WriteString(fmt.Sprintf("<p><strong>Status:</strong> <span class=\"%s\">%s</span></p>\n",
		statusClass, escapeHTML(product.Availability.Label())))

	escaped := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		escaped = append(escaped, escapeHTML(kw))
	}
	b.WriteString(fmt.Sprintf("<p><strong>Matched keywords:</strong> %s</p>\n", strings.Join(escaped, ", ")))

	// Scraped links are untrusted; only render http(s) targets as a button.
	if isSafeURL(product.Link) {
		b.WriteString(fmt.Sprintf("<a href=\"%s\" class=\"button\">View product</a>\n", escapeHTML(product.Link)))
	}

	b.WriteString(fmt.Sprintf("<p class=\"footer\">Alert sent at %s</p>\n", s.now().Format("02/01/2006 15:04:05")))
	b.WriteString("</div>\n")

	b.WriteString("</body>\n</html>")

	return b.String()
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// isSafeURL allows only absolute http and https URLs.
func isSafeURL(urlStr string) bool {
	urlStr = strings.TrimSpace(strings.ToLower(urlStr))
	return strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://")
}

// sanitizeEmailHeader removes newlines and control characters to prevent header injection.
func sanitizeEmailHeader(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	return result.String()
}
