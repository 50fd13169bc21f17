// Package oembed fetches embeddable post markup from an oEmbed provider.
package oembed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/root4loot/embedshot/internal/logging"
)

const (
	// DefaultEndpoint is the public oEmbed endpoint for posts on twitter.com and x.com.
	DefaultEndpoint = "https://publish.twitter.com/oembed"

	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36"
)

var Log = logging.Log

// Client calls an oEmbed endpoint. It never retries.
type Client struct {
	http     *resty.Client
	endpoint string
}

type Option func(*Client)

// WithEndpoint overrides DefaultEndpoint. Empty values are ignored.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout bounds a single request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("user-agent", ua)
		}
	}
}

func NewClient(opts ...Option) *Client {
	client := resty.New()
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetHeader("accept", "application/json")
	client.SetTimeout(defaultTimeout)

	c := &Client{
		http:     client,
		endpoint: DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are sent to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Params holds optional provider parameters. Zero values are not sent.
type Params struct {
	Theme      string // "light" or "dark"
	Lang       string
	MaxWidth   int
	HideThread bool
	HideMedia  bool
	OmitScript bool
	DNT        bool
}

func (p *Params) values() map[string]string {
	v := map[string]string{}
	if p == nil {
		return v
	}
	if p.Theme != "" {
		v["theme"] = p.Theme
	}
	if p.Lang != "" {
		v["lang"] = p.Lang
	}
	if p.MaxWidth > 0 {
		v["maxwidth"] = strconv.Itoa(p.MaxWidth)
	}
	if p.HideThread {
		v["hide_thread"] = "true"
	}
	if p.HideMedia {
		v["hide_media"] = "true"
	}
	if p.OmitScript {
		v["omit_script"] = "true"
	}
	if p.DNT {
		v["dnt"] = "true"
	}
	return v
}

// Fetch requests the embed document for postURL. A document is returned only
// for a 2xx response with a JSON object body; every other outcome is an error
// matching ErrFetchFailed or ErrMalformedDocument.
func (c *Client) Fetch(ctx context.Context, postURL string, params *Params) (Document, error) {
	Log.Debugf("Requesting embed code for %s from %s", postURL, c.endpoint)

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params.values()).
		SetQueryParam("url", postURL).
		Get(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if !res.IsSuccess() {
		return nil, &StatusError{StatusCode: res.StatusCode(), Status: res.Status()}
	}

	var doc Document
	if err := json.Unmarshal(res.Body(), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedDocument)
	}

	Log.Debugf("Received %d byte embed document for %s in %s", len(res.Body()), postURL, res.Time())
	return doc, nil
}
