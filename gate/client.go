package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spacemeshos/powgate/config"
)

const (
	clientHeader = "x-client"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 1 << 20
)

var ErrNoKey = errors.New("gate response did not contain a key")

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (err *StatusError) Error() string {
	return fmt.Sprintf("gate %v responded with status %d: %v", err.Endpoint, err.Code, err.Body)
}

// Response is a successful gate response. Empty bodies are replaced by {"status":"success"}.
type Response struct {
	Status int
	Body   json.RawMessage
}

var emptyBody = json.RawMessage(`{"status":"success"}`)

// Client talks to a proof-of-work gate. All requests of a client carry the same client id.
type Client struct {
	http     *http.Client
	base     *url.URL
	cfg      config.GateConfig
	clientID string
	logger   *zap.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithClientID overrides the random client id.
func WithClientID(id string) ClientOption {
	return func(cl *Client) {
		cl.clientID = id
	}
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func NewClient(cfg config.GateConfig, opts ...ClientOption) (*Client, error) {
	if err := config.ValidateGate(cfg); err != nil {
		return nil, err
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gate base url: %w", err)
	}

	c := &Client{
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		base:     base,
		cfg:      cfg,
		clientID: uuid.NewString(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ClientID() string { return c.clientID }

// FetchKey requests the base64 key used to seal the telemetry.
func (c *Client) FetchKey(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.cfg.KeyPath, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}

	var kr keyResponse
	if err := json.Unmarshal(resp.Body, &kr); err != nil {
		return "", fmt.Errorf("decode key response: %w", err)
	}
	if kr.Key == "" {
		return "", ErrNoKey
	}
	return kr.Key, nil
}

// SubmitSetup posts the sealed telemetry. A successful response carries the challenge.
func (c *Client) SubmitSetup(ctx context.Context, p SetupPayload) (*Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("mouse", p.Ciphertext); err != nil {
		return nil, fmt.Errorf("write mouse part: %w", err)
	}
	if err := mw.WriteField("iv", p.Nonce); err != nil {
		return nil, fmt.Errorf("write iv part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.cfg.SetupPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *Client) SubmitValidation(ctx context.Context, p ValidationPayload) (*Response, error) {
	return c.postJSON(ctx, c.cfg.ValidatePath, p)
}

func (c *Client) SubmitSolution(ctx context.Context, p SolutionPayload) (*Response, error) {
	return c.postJSON(ctx, c.cfg.SolvePath, p)
}

func (c *Client) postJSON(ctx context.Context, path string, v any) (*Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request for %v: %w", path, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request for %v: %w", path, err)
	}
	req.Header.Set(clientHeader, c.clientID)
	req.Header.Set("Accept", "*/*")
	return req, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	endpoint := req.URL.Path
	c.logger.Debug("gate request",
		zap.String("method", req.Method),
		zap.String("endpoint", endpoint),
		zap.String("client", c.clientID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gate %v: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read gate %v response: %w", endpoint, err)
	}

	c.logger.Debug("gate response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("body", body),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: string(body)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = emptyBody
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}
