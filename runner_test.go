package embedshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/root4loot/embedshot/pkg/oembed"
	"github.com/root4loot/embedshot/pkg/screener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetHTML = `<div id="twitter-widget-0">...</div>`

func TestExtractPostID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		want   string
		wantOK bool
	}{
		{"status id", "https://twitter.com/user/status/12345", "12345", true},
		{"tail kept unsplit", "https://twitter.com/user/status/12345/photo/1", "12345/photo/1", true},
		{"first marker wins", "https://x.com/a/status/1/status/2", "1/status/2", true},
		{"query ignored", "https://x.com/user/status/42?s=20&t=abc", "42", true},
		{"no scheme", "twitter.com/user/status/7", "7", true},
		{"non numeric accepted", "https://twitter.com/user/status/abc", "abc", true},
		{"empty path", "https://twitter.com", "", false},
		{"root path", "https://twitter.com/", "", false},
		{"no marker", "https://twitter.com/user", "", false},
		{"marker without id", "https://twitter.com/user/status/", "", false},
		{"statuses is not status", "https://twitter.com/user/statuses", "", false},
		{"unparsable", "://bad url", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPostID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://twitter.com/user/status/1", normalizeURL("twitter.com/user/status/1"))
	assert.Equal(t, "http://twitter.com/user/status/1", normalizeURL(" http://twitter.com/user/status/1 "))
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///tmp/html/999.html", fileURL("/tmp/html/999.html"))
	assert.Equal(t, "file:///tmp/a%20b/999.html", fileURL("/tmp/a b/999.html"))
}

// fakeCapturer records the file URLs it was asked to render and returns a
// small PNG, or err when set.
type fakeCapturer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCapturer) CaptureElement(ctx context.Context, fileURL string) (*screener.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fileURL)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		return nil, err
	}
	return &screener.Result{SourceURL: fileURL, Image: buf.Bytes()}, nil
}

func (f *fakeCapturer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type testEnv struct {
	runner   *Runner
	capturer *fakeCapturer
	hits     *int64
	dir      string
}

// newTestEnv returns a runner whose artifact directories live in a temp dir
// and whose oEmbed endpoint is served by handler.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()

	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "html"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "screenshots"), 0o755))

	opts := DefaultOptions()
	opts.HTMLDir = filepath.Join(dir, "html")
	opts.ScreenshotDir = filepath.Join(dir, "screenshots")
	opts.Endpoint = srv.URL
	opts.Silence = true

	capturer := &fakeCapturer{}
	runner := NewRunnerWithOptions(*opts)
	runner.Capturer = capturer

	return &testEnv{runner: runner, capturer: capturer, hits: &hits, dir: dir}
}

func widgetHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"url": %q, "html": "<div id=\"twitter-widget-0\">...</div>"}`, r.URL.Query().Get("url"))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun(t *testing.T) {
	env := newTestEnv(t, widgetHandler)

	result, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, "999", result.PostID)
	assert.Equal(t, filepath.Join(env.dir, "html", "999.html"), result.HTMLFile)
	assert.Equal(t, filepath.Join(env.dir, "screenshots", "999.png"), result.ScreenshotFile)

	html, err := os.ReadFile(result.HTMLFile)
	require.NoError(t, err)
	assert.Equal(t, widgetHTML, string(html), "html artifact holds the fragment byte for byte")

	info, err := os.Stat(result.ScreenshotFile)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	assert.Equal(t, []string{fileURL(result.HTMLFile)}, env.capturer.Calls())
	assert.EqualValues(t, 1, atomic.LoadInt64(env.hits))
}

func TestRunImprint(t *testing.T) {
	env := newTestEnv(t, widgetHandler)
	env.runner.Options.Imprint = true

	result, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
	require.NoError(t, err)

	b, err := os.ReadFile(result.ScreenshotFile)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 20)
}

func TestRunSkipsURLWithoutPostID(t *testing.T) {
	env := newTestEnv(t, widgetHandler)

	result, err := env.runner.Run(context.Background(), "https://twitter.com/user")
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Empty(t, result.HTMLFile)
	assert.Zero(t, atomic.LoadInt64(env.hits), "no request for a skipped URL")
	assert.Empty(t, env.capturer.Calls())
	assert.Empty(t, listDir(t, filepath.Join(env.dir, "html")))
	assert.Empty(t, listDir(t, filepath.Join(env.dir, "screenshots")))
}

func TestRunFetchFailure(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			desc: "non-success status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "forbidden", http.StatusForbidden)
			},
			wantErr: oembed.ErrFetchFailed,
		},
		{
			desc: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
			wantErr: oembed.ErrMalformedDocument,
		},
		{
			desc: "no html member",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"type": "rich"}`))
			},
			wantErr: oembed.ErrMissingHTML,
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			env := newTestEnv(t, tc.handler)

			_, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
			assert.ErrorIs(t, err, tc.wantErr)

			assert.Empty(t, env.capturer.Calls(), "browser is not started")
			assert.Empty(t, listDir(t, filepath.Join(env.dir, "html")))
			assert.Empty(t, listDir(t, filepath.Join(env.dir, "screenshots")))
		})
	}
}

func TestRunMissingDirectories(t *testing.T) {
	env := newTestEnv(t, widgetHandler)
	env.runner.Options.HTMLDir = filepath.Join(env.dir, "missing")

	_, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, env.capturer.Calls())
}

func TestRunCreateDirs(t *testing.T) {
	env := newTestEnv(t, widgetHandler)
	env.runner.Options.HTMLDir = filepath.Join(env.dir, "out", "html")
	env.runner.Options.ScreenshotDir = filepath.Join(env.dir, "out", "screenshots")
	env.runner.Options.CreateDirs = true

	result, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/12345/photo/1")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(env.dir, "out", "html", "12345", "photo", "1.html"), result.HTMLFile)
	assert.FileExists(t, result.HTMLFile)
	assert.FileExists(t, result.ScreenshotFile)
}

func TestRunRejectsEscapingPostID(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		postURL string
		escaped string
	}{
		{"parent of html dir", "https://twitter.com/u/status/..%2Fescaped", "escaped"},
		{"outside temp dir", "https://twitter.com/u/status/..%2F..%2Fescaped", filepath.Join("..", "escaped")},
		{"html dir itself", "https://twitter.com/u/status/..%2F", ""},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			env := newTestEnv(t, widgetHandler)
			env.runner.Options.CreateDirs = true

			result, err := env.runner.Run(context.Background(), tc.postURL)
			assert.ErrorIs(t, err, ErrInvalidPostID)
			assert.Empty(t, result.HTMLFile)
			assert.Empty(t, result.ScreenshotFile)

			assert.Zero(t, atomic.LoadInt64(env.hits), "no request for a rejected id")
			assert.Empty(t, env.capturer.Calls())
			assert.NoFileExists(t, filepath.Join(env.dir, tc.escaped+".html"))
			assert.NoFileExists(t, filepath.Join(env.dir, tc.escaped+".png"))
			assert.Empty(t, listDir(t, filepath.Join(env.dir, "html")))
			assert.Empty(t, listDir(t, filepath.Join(env.dir, "screenshots")))
		})
	}
}

func TestRunCaptureFailure(t *testing.T) {
	env := newTestEnv(t, widgetHandler)
	env.capturer.err = fmt.Errorf("error locating #twitter-widget-0: %w", screener.ErrWidgetNotFound)

	result, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
	assert.ErrorIs(t, err, screener.ErrWidgetNotFound)

	assert.FileExists(t, result.HTMLFile, "html artifact is written before rendering")
	assert.NoFileExists(t, result.ScreenshotFile)
}

func TestRunUnknownEngine(t *testing.T) {
	env := newTestEnv(t, widgetHandler)
	env.runner.Capturer = nil
	env.runner.Options.Capture.Engine = "netscape"

	_, err := env.runner.Run(context.Background(), "https://twitter.com/user/status/999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown engine")
}

func TestRunConcurrentDistinctPosts(t *testing.T) {
	env := newTestEnv(t, widgetHandler)

	ids := []string{"111", "222"}
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = env.runner.Run(context.Background(), "https://twitter.com/user/status/"+id)
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []string{"111.html", "222.html"}, listDir(t, filepath.Join(env.dir, "html")))
	assert.ElementsMatch(t, []string{"111.png", "222.png"}, listDir(t, filepath.Join(env.dir, "screenshots")))
	assert.Len(t, env.capturer.Calls(), 2)
}

func TestRunCanceled(t *testing.T) {
	env := newTestEnv(t, widgetHandler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.runner.Run(ctx, "https://twitter.com/user/status/999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, oembed.ErrFetchFailed))
	assert.Empty(t, listDir(t, filepath.Join(env.dir, "html")))
}

func TestSetLogLevel(t *testing.T) {
	defer SetLogLevel(&Options{})

	SetLogLevel(&Options{Verbose: true})
	assert.Equal(t, "debug", Log.GetLevel().String())

	SetLogLevel(&Options{Silence: true, Verbose: true})
	assert.Equal(t, "fatal", Log.GetLevel().String())

	SetLogLevel(&Options{})
	assert.Equal(t, "info", Log.GetLevel().String())
}
