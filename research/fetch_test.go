package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	t.Run("skips non-visible elements and collapses whitespace", func(t *testing.T) {
		page := `<html><head>
			<style>body { color: red }</style>
			<script>var x = 1;</script>
		</head><body>
			<h1>Quantum   Computing</h1>
			<p>An
			introduction.</p>
			<noscript>enable javascript</noscript>
		</body></html>`

		text, err := ExtractText(strings.NewReader(page))
		require.NoError(t, err)
		require.Equal(t, "Quantum Computing An introduction.", text)
	})

	t.Run("truncates long pages", func(t *testing.T) {
		page := "<html><body>" + strings.Repeat("word ", 5000) + "</body></html>"
		text, err := ExtractText(strings.NewReader(page))
		require.NoError(t, err)
		require.Len(t, text, maxContentChars)
	})
}

func TestHTTPFetcher(t *testing.T) {
	t.Run("sends browser headers and extracts text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
			require.Contains(t, r.Header.Get("Accept"), "text/html")
			w.Write([]byte("<html><body><p>hello page</p></body></html>"))
		}))
		defer server.Close()

		text, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		require.Equal(t, "hello page", text)
	})

	t.Run("non-200 responses fail", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		require.Error(t, err)
		require.Contains(t, err.Error(), "403")
	})
}
