package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"kwil-client/util/log"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultTimeout = 30 * time.Second

// Client talks to a node's HTTP API.
type Client struct {
	provider string
	http     *fasthttp.Client
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the timeout of requests whose context has no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a client for the node at provider, e.g. "http://localhost:8080".
func NewClient(provider string, opts ...Option) *Client {
	if !strings.HasPrefix(provider, "http") {
		provider = "http://" + provider
	}

	c := &Client{
		provider: strings.TrimRight(provider, "/"),
		http: &fasthttp.Client{
			MaxConnWaitTimeout: 15 * time.Second,
			MaxConnsPerHost:    20,
		},
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Provider returns the node base URL.
func (c *Client) Provider() string {
	return c.provider
}

type response struct {
	body    []byte
	cookies []string
}

func (c *Client) get(ctx context.Context, path string, sess *Session, target interface{}) error {
	resp, err := c.request(ctx, fasthttp.MethodGet, path, nil, sess)
	if err != nil {
		return err
	}
	return decode(path, resp.body, target)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, sess *Session, target interface{}) error {
	resp, err := c.request(ctx, fasthttp.MethodPost, path, body, sess)
	if err != nil {
		return err
	}
	return decode(path, resp.body, target)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}, sess *Session) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(c.provider + path)
	req.Header.SetMethod(method)

	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(reqBody)
	}

	if name, value, ok := sess.cookiePair(); ok {
		req.Header.SetCookie(name, value)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	log.Debugf("%s %s: status=%d, elapsed=%v", method, path, status, time.Since(start))

	if status != fasthttp.StatusOK {
		return nil, &RemoteError{
			Method: method,
			Path:   path,
			Status: status,
			Body:   strings.TrimSpace(string(resp.Body())),
		}
	}

	// The response is released on return, copy what we keep.
	result := &response{body: append([]byte(nil), resp.Body()...)}
	resp.Header.VisitAllCookie(func(_, value []byte) {
		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)

		if err := cookie.ParseBytes(value); err != nil {
			log.Debugf("ignore malformed cookie %q: %v", value, err)
			return
		}
		result.cookies = append(result.cookies, string(cookie.Key())+"="+string(cookie.Value()))
	})

	return result, nil
}

func decode(path string, body []byte, target interface{}) error {
	if target == nil {
		return nil
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("%w: %s", ErrEmptyResponse, path)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
