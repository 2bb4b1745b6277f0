package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.uber.org/zap"
)

// envelope is the response shape every backend endpoint uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Errors  []string        `json:"errors"`
	Message string          `json:"message"`
}

// FilePart is one multipart file field.
type FilePart struct {
	Field    string
	Filename string
	Data     []byte
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the marketplace backend. The cookie jar carries the
// HTTP-only refresh cookie between /auth calls.
type Client struct {
	http    *http.Client
	baseURL string
	log     *zap.SugaredLogger
}

func NewClient(conf Config, log *zap.SugaredLogger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &Client{
		http:    &http.Client{Transport: tr, Jar: jar, Timeout: timeout},
		baseURL: baseURL,
		log:     log,
	}, nil
}

// DoJSON sends a JSON request and returns the envelope's data field.
// A nil body sends no request body. An empty token omits the
// Authorization header.
func (c *Client) DoJSON(ctx context.Context, method, path string, body any, token string) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

// DoMultipart sends a multipart request with a JSON "payload" part and
// any number of file parts.
func (c *Client) DoMultipart(ctx context.Context, method, path string, payload any, files []FilePart, token string) (json.RawMessage, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := w.WriteField("payload", string(b)); err != nil {
		return nil, err
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warnw("request transport failure", "method", req.Method, "path", req.URL.Path, "err", err)
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrServerUnreachable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &Error{Status: resp.StatusCode, ErrorMsg: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return nil, &Error{
			Status:   resp.StatusCode,
			ErrorMsg: env.Error,
			Errors:   env.Errors,
			Message:  env.Message,
		}
	}
	return env.Data, nil
}
