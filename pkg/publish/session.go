package publish

import (
	"context"
	"fmt"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the HTTP session. A zero Timeout means requests wait for
// the peer indefinitely.
type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Session POSTs line protocol bodies. It is not bound to a destination; the
// URL is given on every Send and used as-is.
type Session struct {
	client  *http.Client
	service ihttp.Service

	closed    atomic.Bool
	closeOnce sync.Once
}

func Init(opts Options) (*Session, error) {
	if opts.Timeout < 0 {
		return nil, &InitError{Sink: "http", Err: fmt.Errorf("negative timeout %v", opts.Timeout)}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	service := ihttp.NewService("", "", ihttp.DefaultOptions().SetHTTPClient(client))
	return &Session{client: client, service: service}, nil
}

// Send issues one synchronous POST with body to url. Any non-2xx answer or
// transport failure is returned as a *TransportError; nothing is retried.
func (s *Session) Send(ctx context.Context, body string, url string) error {
	if s.closed.Load() {
		return &TransportError{Sink: "http", URL: url, Message: "session closed", Err: ErrSessionClosed}
	}

	perr := s.service.DoPostRequest(ctx, url, strings.NewReader(body),
		func(req *http.Request) {
			req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		},
		func(resp *http.Response) error {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.Body.Close()
		})
	if perr != nil {
		return &TransportError{
			Sink:       "http",
			URL:        url,
			StatusCode: perr.StatusCode,
			Message:    perr.Error(),
			Err:        perr,
		}
	}
	return nil
}

// Close ends the session; later sends fail. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.client.CloseIdleConnections()
	})
	return nil
}
