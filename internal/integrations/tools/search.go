package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchURL = "https://html.duckduckgo.com/html/"
	maxSearchResults = 3
)

type searchResult struct {
	title   string
	snippet string
}

func (r *Registry) search(ctx context.Context, args map[string]string) (string, error) {
	q := strings.TrimSpace(args["query"])
	if q == "" {
		return "", userError("Search query is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.searchURL+"?q="+url.QueryEscape(q), nil)
	if err != nil {
		return "", fmt.Errorf("tools: create search request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "formula-agent/1.0")
	res, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tools: search request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("tools: search failed with status %d", res.StatusCode)
	}

	results, err := parseSearchResults(io.LimitReader(res.Body, 2<<20))
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", userError(fmt.Sprintf("No search results found for %q", q))
	}

	lines := make([]string, len(results))
	for i, res := range results {
		lines[i] = fmt.Sprintf("%d. %s\n   %s", i+1, res.title, res.snippet)
	}
	return strings.Join(lines, "\n\n"), nil
}

// parseSearchResults reads a DuckDuckGo-style HTML results page. Snippets are
// converted to markdown so emphasis and links survive as plain text.
func parseSearchResults(body io.Reader) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("tools: parse search page: %w", err)
	}
	conv := md.NewConverter("", true, nil)

	var out []searchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Find(".result__a").First().Text())
		if title == "" {
			return true
		}
		snippet := "No description"
		if html, err := s.Find(".result__snippet").First().Html(); err == nil && strings.TrimSpace(html) != "" {
			if text, err := conv.ConvertString(html); err == nil && strings.TrimSpace(text) != "" {
				snippet = strings.Join(strings.Fields(text), " ")
			}
		}
		out = append(out, searchResult{title: title, snippet: snippet})
		return len(out) < maxSearchResults
	})
	return out, nil
}
