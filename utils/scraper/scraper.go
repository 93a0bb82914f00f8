// Package scraper turns web pages into document text for analysis.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/domain"
)

// Page represents the structured data extracted from a webpage
type Page struct {
	URL         string
	Title       string
	Text        []string
	StatusCode  int
	ContentType string
}

// Document returns the page as analysis input: the title followed by its paragraphs
func (p *Page) Document() string {
	var b strings.Builder
	if p.Title != "" {
		b.WriteString(p.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.Join(p.Text, "\n\n"))
	return strings.TrimSpace(b.String())
}

// Name is a document name for the page
func (p *Page) Name() string {
	if p.Title != "" {
		return p.Title
	}
	return p.URL
}

// Scraper provides web scraping functionality
type Scraper struct {
	userAgent      string
	timeout        time.Duration
	allowedDomains []string
}

// NewScraper creates a new scraper instance with default configuration
func NewScraper() *Scraper {
	return &Scraper{
		userAgent: "Mozilla/5.0 (compatible; personaflow/1.0)",
		timeout:   30 * time.Second,
	}
}

// AllowedDomains restricts fetches to the given domains and their subdomains
func (s *Scraper) AllowedDomains(domains ...string) {
	s.allowedDomains = domains
	config.DebugLog("[Scraper] Set allowed domains to: %v", domains)
}

func (s *Scraper) allowed(host string) bool {
	if len(s.allowedDomains) == 0 {
		return true
	}
	for _, d := range s.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Fetch downloads rawURL and extracts its title and paragraph text
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid document url %q", domain.ErrValidation, rawURL)
	}
	if !s.allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: domain %s is not allowed", domain.ErrValidation, u.Hostname())
	}

	// a fresh collector per fetch keeps callbacks from piling up
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.timeout)

	page := &Page{URL: rawURL}
	c.OnHTML("title", func(e *colly.HTMLElement) {
		page.Title = strings.TrimSpace(e.Text)
	})
	c.OnHTML("p", func(e *colly.HTMLElement) {
		if text := strings.TrimSpace(e.Text); text != "" {
			page.Text = append(page.Text, text)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.ContentType = r.Headers.Get("Content-Type")
	})

	config.DebugLog("[Scraper] Fetching %s", rawURL)
	if err := c.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrUpstream, rawURL, err)
	}
	c.Wait()

	if page.Document() == "" {
		return nil, fmt.Errorf("%w: no text found at %s", domain.ErrValidation, rawURL)
	}
	return page, nil
}
