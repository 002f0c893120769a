package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	scrapeMaxSize        = 5 * 1024 * 1024
	defaultScrapeTimeout = 15 * time.Second
)

// ScraperConfig configures a Scraper.
type ScraperConfig struct {
	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Scraper fetches result pages and converts them to Markdown for hits the
// search API returned without content.
type Scraper struct {
	httpClient *http.Client
	userAgent  string
	converter  *md.Converter
	logger     *slog.Logger
}

var _ Enricher = (*Scraper)(nil)

// NewScraper creates a Scraper.
func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultScrapeTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "orbital/1.0"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		httpClient: httpClient,
		userAgent:  cfg.UserAgent,
		converter:  md.NewConverter("", true, nil),
		logger:     logger.With("component", "scraper"),
	}
}

// Enrich fills Markdown, and Title when missing, for results that have no
// Markdown. Failures leave the result unchanged.
func (s *Scraper) Enrich(ctx context.Context, results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	for i := range out {
		if out[i].Markdown != "" || out[i].URL == "" {
			continue
		}
		page, err := s.Fetch(ctx, out[i].URL)
		if err != nil {
			s.logger.Debug("scrape failed", "url", out[i].URL, "error", err)
			continue
		}
		out[i].Markdown = page.Markdown
		if out[i].Title == "" {
			out[i].Title = page.Title
		}
	}
	return out
}

// Page is a fetched and converted web page.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// Fetch downloads url and converts it to Markdown.
func (s *Scraper) Fetch(ctx context.Context, url string) (*Page, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("URL must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, scrapeMaxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	content := string(body)
	page := &Page{URL: resp.Request.URL.String()}

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		page.Markdown = strings.TrimSpace(content)
		return page, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	// Remove script and style tags
	doc.Find("script, style, noscript, nav, footer").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	page.Markdown, err = s.toMarkdown(doc)
	if err != nil {
		s.logger.Debug("markdown conversion failed, using text", "url", url, "error", err)
		page.Markdown = extractText(doc)
	}
	return page, nil
}

func (s *Scraper) toMarkdown(doc *goquery.Document) (string, error) {
	markdown := s.converter.Convert(doc.Find("body"))
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", fmt.Errorf("empty markdown")
	}
	for strings.Contains(markdown, "\n\n\n") {
		markdown = strings.ReplaceAll(markdown, "\n\n\n", "\n\n")
	}
	return markdown, nil
}

// extractText returns the visible text of doc, one trimmed line per line.
func extractText(doc *goquery.Document) string {
	lines := strings.Split(doc.Text(), "\n")
	var cleaned []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}
