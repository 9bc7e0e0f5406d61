package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/ragnote/core"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (compatible; ragnote/1.0)"
	DefaultTimeout   = 15 * time.Second
	DefaultMaxChars  = 50000
	DefaultMaxBytes  = 5 << 20
	DefaultCacheSize = 256
	DefaultCacheTTL  = 10 * time.Minute

	// Pages with less text than this are replaced by a placeholder.
	minPageChars = 100
)

var (
	// ErrInvalidURL is returned for links that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("not an http or https URL")

	// ErrInvalidLimit is returned when a size limit is not positive.
	ErrInvalidLimit = errors.New("limit must be greater than 0")
)

// Content is the text extracted from a link.
type Content struct {
	URL         string
	Text        string
	ContentType string
}

// Extractor downloads links and reduces them to plain text.
// Results are cached per URL for a limited time.
type Extractor struct {
	client    *http.Client
	userAgent string
	maxChars  int
	maxBytes  int64
	cacheSize int
	cacheTTL  time.Duration
	cache     *expirable.LRU[string, *Content]
	logger    *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor) error

// WithHTTPClient sets the client used for downloads. Its Timeout is left
// unchanged.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) error {
		if client != nil {
			e.client = client
		}
		return nil
	}
}

// WithTimeout sets the download timeout. Default is 15s.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Extractor) error {
		if timeout > 0 {
			e.client.Timeout = timeout
		}
		return nil
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(e *Extractor) error {
		if userAgent != "" {
			e.userAgent = userAgent
		}
		return nil
	}
}

// WithMaxChars sets how many runes of text are kept. Default is 50,000.
func WithMaxChars(n int) Option {
	return func(e *Extractor) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		e.maxChars = n
		return nil
	}
}

// WithMaxBytes bounds how much of a response body is read. Default is 5 MiB.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		e.maxBytes = n
		return nil
	}
}

// WithCache sets the size and lifetime of the per-URL result cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(e *Extractor) error {
		if size < 1 {
			return ErrInvalidLimit
		}
		e.cacheSize = size
		e.cacheTTL = ttl
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an extractor.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: DefaultUserAgent,
		maxChars:  DefaultMaxChars,
		maxBytes:  DefaultMaxBytes,
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.cache = expirable.NewLRU[string, *Content](e.cacheSize, nil, e.cacheTTL)
	e.logger = e.logger.With("component", "extract")
	return e, nil
}

// Extract downloads rawURL and returns its text.
// Every failure wraps core.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Content, error) {
	if cached, ok := e.cache.Get(rawURL); ok {
		e.logger.Debug("extraction served from cache", "url", rawURL)
		content := *cached
		return &content, nil
	}

	if err := validateURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExtraction, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExtraction, rawURL, err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", core.ErrExtraction, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetching %s: status %d", core.ErrExtraction, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", core.ErrExtraction, rawURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := &Content{URL: rawURL, ContentType: contentType}
	switch mediaType(contentType) {
	case "text/html":
		text, err := htmlText(body)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", core.ErrExtraction, rawURL, err)
		}
		text = truncateRunes(text, e.maxChars)
		if utf8.RuneCountInString(text) < minPageChars {
			text = fmt.Sprintf("Content from %s. Web page processed.", rawURL)
		}
		content.Text = text
	case "text/plain", "text/markdown":
		content.Text = truncateRunes(string(body), e.maxChars)
	default:
		content.Text = fmt.Sprintf("Content from %s (%s). Link processed and added to knowledge base.", rawURL, contentType)
	}

	e.cache.Add(rawURL, content)
	e.logger.Debug("extracted link", "url", rawURL, "contentType", contentType, "chars", utf8.RuneCountInString(content.Text))

	result := *content
	return &result, nil
}

// Tag prefixes extracted text with its provenance, and with the owner it
// describes when owner is not empty.
func Tag(content *Content, owner string) string {
	var sb strings.Builder
	if owner = strings.TrimSpace(owner); owner != "" {
		sb.WriteString("[Personal Information for ")
		sb.WriteString(owner)
		sb.WriteString("]\n")
	}
	sb.WriteString("[Content from: ")
	sb.WriteString(content.URL)
	sb.WriteString("]\n")
	sb.WriteString(content.Text)
	return sb.String()
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// mediaType returns the lowercased media type of a Content-Type header.
func mediaType(contentType string) string {
	parsed, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if i := strings.IndexByte(contentType, ';'); i >= 0 {
			contentType = contentType[:i]
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return parsed
}

// htmlText returns the visible text of an HTML document with whitespace
// collapsed to single spaces.
func htmlText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
