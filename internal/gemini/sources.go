package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/mindvoice/internal/config"
	"github.com/set-night/mindvoice/internal/domain"
)

const titleCacheTTL = 6 * time.Hour

// TitleResolver fills in citation titles that are missing or only name the
// host by reading the cited page's <title>.
type TitleResolver struct {
	httpClient *http.Client
	cache      *titleCache
	maxLookups int
}

func NewTitleResolver() *TitleResolver {
	return &TitleResolver{
		httpClient: &http.Client{Timeout: config.SourceTitleTimeout},
		cache:      newTitleCache(titleCacheTTL),
		maxLookups: config.MaxSourceLookups,
	}
}

// Resolve returns sources with improved titles. Lookups that fail keep the
// original title, falling back to the host name when it is empty.
func (r *TitleResolver) Resolve(ctx context.Context, sources []domain.Source) []domain.Source {
	out := make([]domain.Source, len(sources))
	copy(out, sources)

	var wg sync.WaitGroup
	lookups := 0
	for i := range out {
		if !needsTitle(out[i]) {
			continue
		}
		if title, ok := r.cache.Get(out[i].URI); ok {
			out[i].Title = title
			continue
		}
		if lookups >= r.maxLookups {
			out[i].Title = fallbackTitle(out[i])
			continue
		}
		lookups++
		wg.Add(1)
		go func(s *domain.Source) {
			defer wg.Done()
			title, err := r.fetchTitle(ctx, s.URI)
			if err != nil {
				slog.Debug("resolve source title", "uri", s.URI, "error", err)
				s.Title = fallbackTitle(*s)
				return
			}
			r.cache.Set(s.URI, title)
			s.Title = title
		}(&out[i])
	}
	wg.Wait()
	return out
}

func (r *TitleResolver) fetchTitle(ctx context.Context, uri string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.SourceTitleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; mindvoice)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		return "", fmt.Errorf("page has no title")
	}
	return strings.Join(strings.Fields(title), " "), nil
}

func needsTitle(s domain.Source) bool {
	if s.URI == "" {
		return false
	}
	t := strings.TrimSpace(s.Title)
	if t == "" {
		return true
	}
	return strings.EqualFold(t, hostOf(s.URI))
}

func fallbackTitle(s domain.Source) string {
	if t := strings.TrimSpace(s.Title); t != "" {
		return t
	}
	if h := hostOf(s.URI); h != "" {
		return h
	}
	return s.URI
}

func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

type titleEntry struct {
	title    string
	cachedAt time.Time
}

type titleCache struct {
	mu      sync.RWMutex
	entries map[string]titleEntry
	ttl     time.Duration
}

func newTitleCache(ttl time.Duration) *titleCache {
	return &titleCache{entries: make(map[string]titleEntry), ttl: ttl}
}

func (c *titleCache) Get(uri string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[uri]
	if !ok || time.Since(e.cachedAt) > c.ttl {
		return "", false
	}
	return e.title, true
}

func (c *titleCache) Set(uri, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = titleEntry{title: title, cachedAt: time.Now()}
}
