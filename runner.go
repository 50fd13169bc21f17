package embedshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/root4loot/embedshot/internal/logging"
	"github.com/root4loot/embedshot/pkg/oembed"
	"github.com/root4loot/embedshot/pkg/screener"
	"github.com/sirupsen/logrus"
)

var Log = logging.Log

// ErrInvalidPostID reports a post identifier that cannot name an artifact
// inside the output directories.
var ErrInvalidPostID = errors.New("embedshot: invalid post id")

// Fetcher retrieves the embed document for a post URL.
type Fetcher interface {
	Fetch(ctx context.Context, postURL string, params *oembed.Params) (oembed.Document, error)
}

type Runner struct {
	Options  *Options
	Fetcher  Fetcher            // nil: oEmbed client built from Options
	Capturer screener.Capturer // nil: engine built from Options.Capture
	mutex    sync.Mutex
}

// Options contains options for the runner
type Options struct {
	HTMLDir       string           // directory of HTML artifacts
	ScreenshotDir string           // directory of screenshot artifacts
	CreateDirs    bool             // create artifact directories when missing
	Endpoint      string           // oEmbed endpoint
	FetchTimeout  time.Duration    // timeout of the oEmbed request
	Embed         oembed.Params    // optional provider parameters
	Capture       screener.Options // browser capture options
	Imprint       bool             // add the post URL below the screenshot
	Silence       bool             // silence output
	Verbose       bool             // verbose logging
}

// Result describes the artifacts of one run.
type Result struct {
	PostURL        string
	PostID         string
	HTMLFile       string
	ScreenshotFile string
	Skipped        bool // no post identifier in PostURL, nothing was done
}

// DefaultOptions returns default options
func DefaultOptions() *Options {
	return &Options{
		HTMLDir:       "html",
		ScreenshotDir: "screenshots",
		Endpoint:      oembed.DefaultEndpoint,
		FetchTimeout:  30 * time.Second,
		Capture:       screener.NewOptions(),
	}
}

// NewRunner returns a new runner
func NewRunner() *Runner {
	return &Runner{Options: DefaultOptions()}
}

// NewRunnerWithOptions returns a new runner with the specified options
func NewRunnerWithOptions(options Options) *Runner {
	SetLogLevel(&options)
	Log.Debug("Creating new runner with options...")

	return &Runner{Options: &options}
}

// Run fetches the embed markup of postURL, writes it to the HTML artifact
// and captures the rendered widget into the screenshot artifact.
//
// A URL without a /status/ segment is not an error: the returned Result has
// Skipped set and no request or file write happens. On error the Result
// holds the paths computed so far.
func (r *Runner) Run(ctx context.Context, postURL string) (*Result, error) {
	result := &Result{PostURL: postURL}

	postID, ok := ExtractPostID(postURL)
	if !ok {
		Log.Debugf("No post identifier in %s, skipping", postURL)
		result.Skipped = true
		return result, nil
	}
	result.PostID = postID

	htmlFile, screenshotFile, err := r.artifactPaths(postID)
	if err != nil {
		return result, err
	}
	result.HTMLFile = htmlFile
	result.ScreenshotFile = screenshotFile

	log := Log.WithField("id", postID)

	log.Info("Start download embed code.")

	doc, err := r.fetcher().Fetch(ctx, normalizeURL(postURL), &r.Options.Embed)
	if err != nil {
		return result, err
	}

	html, ok := doc.HTML()
	if !ok {
		return result, oembed.ErrMissingHTML
	}

	log.Info("Downloaded embed code.")
	logSummary(log, doc)

	if err := writeArtifact(htmlFile, []byte(html), r.Options.CreateDirs); err != nil {
		return result, err
	}

	log.Info("Start browser to render embed code as HTML.")

	if err := r.capture(ctx, postURL, htmlFile, screenshotFile); err != nil {
		return result, err
	}

	log.Infof("Embed: %s", htmlFile)
	log.Infof("Image: %s", screenshotFile)

	return result, nil
}

// artifactPaths returns the absolute HTML and screenshot paths for postID.
// A postID that would place an artifact outside its directory is rejected
// with ErrInvalidPostID.
func (r *Runner) artifactPaths(postID string) (htmlFile, screenshotFile string, err error) {
	htmlFile, err = artifactPath(r.Options.HTMLDir, postID+".html")
	if err != nil {
		return "", "", err
	}

	screenshotFile, err = artifactPath(r.Options.ScreenshotDir, postID+".png")
	if err != nil {
		return "", "", err
	}

	return htmlFile, screenshotFile, nil
}

func artifactPath(dir, name string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("error resolving %s: %w", dir, err)
	}

	path := filepath.Join(absDir, name)
	rel, err := filepath.Rel(absDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s leaves %s", ErrInvalidPostID, name, dir)
	}

	return path, nil
}

func (r *Runner) fetcher() Fetcher {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Fetcher == nil {
		r.Fetcher = oembed.NewClient(
			oembed.WithEndpoint(r.Options.Endpoint),
			oembed.WithTimeout(r.Options.FetchTimeout),
			oembed.WithUserAgent(r.Options.Capture.UserAgent),
		)
	}
	return r.Fetcher
}

func (r *Runner) capturer() (screener.Capturer, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.Capturer == nil {
		c, err := screener.New(r.Options.Capture)
		if err != nil {
			return nil, err
		}
		r.Capturer = c
	}
	return r.Capturer, nil
}

func logSummary(log *logrus.Entry, doc oembed.Document) {
	if !Log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	summary, err := doc.Summary()
	if err != nil {
		log.Debugf("Could not summarize embed code: %v", err)
		return
	}
	log.Debugf("Embedded post by %q: %s", doc.String("author_name"), summary)
}

// SetLogLevel sets the log level based on the options
func SetLogLevel(options *Options) {
	if options.Silence {
		Log.SetLevel(logrus.FatalLevel)
	} else if options.Verbose {
		Log.SetLevel(logrus.DebugLevel)
	} else {
		Log.SetLevel(logrus.InfoLevel)
	}
}
