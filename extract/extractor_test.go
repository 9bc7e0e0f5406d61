package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/poiesic/ragnote/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longParagraph = "Grace spent a decade building compilers and distributed schedulers, " +
	"then moved on to teaching systems programming at a small college."

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func serve(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}
}

func TestExtract_HTML(t *testing.T) {
	var userAgent atomic.Value
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>About</title>
<style>body { color: red }</style><script>var tracking = 1;</script></head>
<body><noscript>enable javascript</noscript>
<h1>About   Grace</h1>
<p>` + longParagraph + `</p></body></html>`))
	})

	extractor, err := New()
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL+"/about")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/about", content.URL)
	assert.Equal(t, "text/html; charset=utf-8", content.ContentType)
	assert.Contains(t, content.Text, "About Grace "+longParagraph)
	assert.NotContains(t, content.Text, "tracking")
	assert.NotContains(t, content.Text, "color: red")
	assert.NotContains(t, content.Text, "enable javascript")
	assert.NotContains(t, content.Text, "\n")
	assert.Equal(t, DefaultUserAgent, userAgent.Load())
}

func TestExtract_ShortHTMLUsesPlaceholder(t *testing.T) {
	srv := newServer(t, serve("text/html", "<html><body><p>tiny</p></body></html>"))
	extractor, err := New()
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Content from "+srv.URL+". Web page processed.", content.Text)
}

func TestExtract_PlainTextIsTruncated(t *testing.T) {
	body := strings.Repeat("é", 40)
	srv := newServer(t, serve("text/plain", body))
	extractor, err := New(WithMaxChars(25))
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 25, utf8.RuneCountInString(content.Text))
	assert.True(t, utf8.ValidString(content.Text))
}

func TestExtract_Markdown(t *testing.T) {
	srv := newServer(t, serve("text/markdown", "# Notes\n\n* one"))
	extractor, err := New()
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\n* one", content.Text)
}

func TestExtract_OtherContentTypeUsesPlaceholder(t *testing.T) {
	srv := newServer(t, serve("application/pdf", "%PDF-1.7"))
	extractor, err := New()
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL+"/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t,
		"Content from "+srv.URL+"/cv.pdf (application/pdf). Link processed and added to knowledge base.",
		content.Text)
}

func TestExtract_BodyIsBounded(t *testing.T) {
	srv := newServer(t, serve("text/plain", strings.Repeat("x", 1000)))
	extractor, err := New(WithMaxBytes(10))
	require.NoError(t, err)

	content, err := extractor.Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, content.Text, 10)
}

func TestExtract_Failures(t *testing.T) {
	notFound := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	slow := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	extractor, err := New(WithTimeout(100 * time.Millisecond))
	require.NoError(t, err)

	testCases := []struct {
		name string
		url  string
	}{
		{"non-2xx status", notFound.URL},
		{"timeout", slow.URL},
		{"unsupported scheme", "ftp://example.com/file"},
		{"relative url", "/just/a/path"},
		{"unreachable host", "http://127.0.0.1:1/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			content, err := extractor.Extract(context.Background(), tc.url)
			assert.ErrorIs(t, err, core.ErrExtraction)
			assert.Nil(t, content)
		})
	}
}

func TestExtract_CachesResults(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("cached body"))
	})

	extractor, err := New(WithCache(4, time.Minute))
	require.NoError(t, err)

	for range 3 {
		content, err := extractor.Extract(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "cached body", content.Text)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestExtract_FailuresAreNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	extractor, err := New()
	require.NoError(t, err)

	for range 2 {
		_, err := extractor.Extract(context.Background(), srv.URL)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestNew_InvalidLimits(t *testing.T) {
	_, err := New(WithMaxChars(0))
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = New(WithMaxBytes(-1))
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = New(WithCache(0, time.Minute))
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestTag(t *testing.T) {
	content := &Content{URL: "https://example.com/cv", Text: "Ten years of Go."}

	assert.Equal(t,
		"[Personal Information for Grace Hopper]\n[Content from: https://example.com/cv]\nTen years of Go.",
		Tag(content, "Grace Hopper"))
	assert.Equal(t,
		"[Content from: https://example.com/cv]\nTen years of Go.",
		Tag(content, "  "))
}
