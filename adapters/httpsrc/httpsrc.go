// Package httpsrc is a reference Source Adapter Contract implementation
// backing a deferred value with an HTTP round trip, built on
// go-retryablehttp for the retry-with-backoff behavior and
// go-cleanhttp for a transport that does not leak the package-level
// http.DefaultTransport's connection pool across adapters.
package httpsrc

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/lionel-/deferred"
)

// Client wraps a retryablehttp.Client so a process can share one
// connection pool and retry policy across every Get/Head call it
// issues through this package.
type Client struct {
	rc *retryablehttp.Client
}

// NewClient builds a Client with go-cleanhttp's pooled transport and
// go-retryablehttp's default exponential backoff policy, capped at two
// retries. The retryable client's own logger is silenced, and the
// adapter logs nothing itself.
func NewClient() *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.Logger = nil
	rc.RetryMax = 2

	return &Client{rc: rc}
}

// Get starts a GET request against url and settles with the
// *http.Response on success. A status that go-retryablehttp's default
// retry policy does not retry (such as a 404) is not itself a
// rejection; the caller inspects resp.StatusCode. A status it does
// retry (429 and most 5xx) rejects once every attempt has received one.
func (c *Client) Get(b *deferred.Barrier, url string) *deferred.Deferred {
	return c.do(b, http.MethodGet, url)
}

// Head starts a HEAD request against url.
func (c *Client) Head(b *deferred.Barrier, url string) *deferred.Deferred {
	return c.do(b, http.MethodHead, url)
}

func (c *Client) do(b *deferred.Barrier, method, url string) *deferred.Deferred {
	return deferred.NewDeferred(b, &producer{rc: c.rc, method: method, url: url})
}

type producer struct {
	rc     *retryablehttp.Client
	method string
	url    string
	cancel context.CancelFunc
}

func (p *producer) Start(s deferred.Settlement, reg deferred.Registrar) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	req, err := retryablehttp.NewRequestWithContext(ctx, p.method, p.url, nil)
	if err != nil {
		s.Reject(deferred.WrapError(deferred.KindUser, "building request", err))
		return
	}

	go func() {
		resp, err := p.rc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				s.Reject(deferred.WrapError(deferred.KindTimeout, "request aborted", ctx.Err()))
				return
			}

			s.Reject(deferred.WrapError(deferred.KindUser, "http request failed", err))
			return
		}

		s.Fulfil(resp)
	}()
}

func (p *producer) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}

// DefaultTimeout is a request deadline callers can pair with Get/Head
// when they want a bounded round trip. The adapter itself applies no
// deadline: a request is bounded only by the client's two retries and
// their backoff waits.
const DefaultTimeout = 30 * time.Second
