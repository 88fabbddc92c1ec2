// Package fetcher downloads journal exports from a URL.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// MaxSize is the largest export Fetch will read
const MaxSize = 10 * 1024 * 1024

var client = &http.Client{Timeout: 30 * time.Second}

// Fetch retrieves an export from rawURL. When the server answers with an
// HTML page, the contents of its first <pre> block are returned, which is
// how paste sites render raw JSON.
func Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain;q=0.9, text/html;q=0.5")
	req.Header.Set("User-Agent", "journal/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxSize {
		return nil, fmt.Errorf("export larger than %d bytes", MaxSize)
	}

	if isHTML(resp.Header.Get("Content-Type")) {
		pre, ok := extractPre(body)
		if !ok {
			return nil, fmt.Errorf("no <pre> block in HTML response")
		}
		return []byte(pre), nil
	}
	return body, nil
}

// IsURL reports whether s looks like an http(s) URL
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}

// extractPre returns the text of the first <pre> element
func extractPre(body []byte) (string, bool) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", false
	}

	var pre *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if pre != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "pre" {
			pre = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if pre == nil {
		return "", false
	}

	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(pre)

	return strings.TrimSpace(sb.String()), true
}
