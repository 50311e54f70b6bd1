package service

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rabits/control-interceptor/internal/domain/upstream"
)

// fakeQuerier returns a scripted port and counts calls.
type fakeQuerier struct {
	port  int
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (q *fakeQuerier) QueryPort(ctx context.Context) (int, error) {
	q.calls.Add(1)
	if q.delay > 0 {
		select {
		case <-time.After(q.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return q.port, q.err
}

// countingExecutor counts privileged actions.
type countingExecutor struct {
	calls       atomic.Int32
	err         error
	hadDeadline atomic.Bool
}

func (e *countingExecutor) Execute(ctx context.Context) error {
	e.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		e.hadDeadline.Store(true)
	}
	return e.err
}

// staticResolver always resolves to endpoint and counts invalidations.
type staticResolver struct {
	endpoint      upstream.Endpoint
	err           error
	invalidations atomic.Int32

	mu    sync.Mutex
	stale upstream.Endpoint
}

func (r *staticResolver) Resolve(context.Context) (upstream.Endpoint, error) {
	return r.endpoint, r.err
}

func (r *staticResolver) Invalidate(stale upstream.Endpoint) {
	r.invalidations.Add(1)
	r.mu.Lock()
	r.stale = stale
	r.mu.Unlock()
}

// lastStale returns the endpoint passed to the latest Invalidate.
func (r *staticResolver) lastStale() upstream.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// recordedRequest is what the fake upstream saw.
type recordedRequest struct {
	Method        string
	Host          string
	RequestURI    string
	Header        http.Header
	Body          []byte
	ContentLength int64
}

// fakeUpstream is an httptest server recording requests and replying with
// a configurable status and body.
type fakeUpstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
	header   http.Header
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{status: http.StatusOK}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.requests = append(u.requests, recordedRequest{
			Method:        r.Method,
			Host:          r.Host,
			RequestURI:    r.RequestURI,
			Header:        r.Header.Clone(),
			Body:          body,
			ContentLength: r.ContentLength,
		})
		status, respBody, header := u.status, u.body, u.header
		u.mu.Unlock()

		for k, vv := range header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, respBody)
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *fakeUpstream) reply(status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
	u.body = body
}

func (u *fakeUpstream) last(t *testing.T) recordedRequest {
	t.Helper()
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.requests) == 0 {
		t.Fatal("upstream received no request")
	}
	return u.requests[len(u.requests)-1]
}

func (u *fakeUpstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *fakeUpstream) port() int {
	return u.Listener.Addr().(*net.TCPAddr).Port
}

func (u *fakeUpstream) endpoint(t *testing.T) upstream.Endpoint {
	t.Helper()
	ep, err := upstream.NewEndpoint(upstream.LoopbackHost, u.port())
	if err != nil {
		t.Fatal(err)
	}
	return ep
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// counterValue reads a labelled counter from vec.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := vec.WithLabelValues(labels...).Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

var errQuery = errors.New("settings query failed")

func testCounter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}
