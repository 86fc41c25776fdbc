package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"kakapo-chat/internal/domain"
	"kakapo-chat/internal/integrations/paramstore"
)

const defaultEndpoint = "https://kakapo-backend.onrender.com/chat"

// chatRequest is the wire shape posted to the backend.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Image     string `json:"image,omitempty"`
}

// chatResponse is the wire shape returned by the backend.
type chatResponse struct {
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
	Intent   string `json:"intent,omitempty"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx backend responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("assistant: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts utterances to the assistant backend. Every call is a single
// attempt: no retries, no deduplication, and no timeout beyond what the
// configured http.Client applies.
type Client struct {
	endpoint    string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	resolveOnce sync.Once
	resolvedURL string
	apiToken    string
	resolveErr  error
}

type Option func(*Client)

func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSpace(endpoint)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithParamStore makes the client read its endpoint and bearer token from
// SSM under paramPrefix on first use. A missing endpoint parameter falls
// back to the configured endpoint; a missing token means no Authorization
// header.
func WithParamStore(g Getter, paramPrefix string) Option {
	return func(c *Client) {
		c.getter = g
		c.paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	}
}

func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.getter != nil && c.paramPrefix == "" {
		return nil, errors.New("assistant: parameter prefix must not be empty")
	}
	if c.getter == nil && c.endpoint == "" {
		return nil, errors.New("assistant: endpoint must not be empty")
	}
	return c, nil
}

// resolve loads SSM-backed settings once per process lifetime.
func (c *Client) resolve(ctx context.Context) (string, string, error) {
	c.resolveOnce.Do(func() {
		c.resolvedURL = c.endpoint
		if c.getter == nil {
			return
		}
		v, err := c.getter.GetParameter(ctx, c.paramPrefix+"/endpoint")
		switch {
		case err == nil && strings.TrimSpace(v) != "":
			c.resolvedURL = strings.TrimSpace(v)
		case err != nil && !errors.Is(err, paramstore.ErrNotFound):
			c.resolveErr = fmt.Errorf("assistant: fetch endpoint from paramstore: %w", err)
			return
		}
		if c.resolvedURL == "" {
			c.resolveErr = errors.New("assistant: no endpoint configured")
			return
		}
		token, err := fetchTokenFromParamStore(ctx, c.getter, c.paramPrefix+"/api-token")
		if err != nil {
			c.resolveErr = err
			return
		}
		c.apiToken = token
	})
	return c.resolvedURL, c.apiToken, c.resolveErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{}
}

// Send posts one utterance and decodes the reply. Any non-2xx status or
// transport failure is returned as an error.
func (c *Client) Send(ctx context.Context, in domain.AssistantRequest) (domain.AssistantReply, error) {
	if strings.TrimSpace(in.SessionID) == "" {
		return domain.AssistantReply{}, errors.New("assistant: session id must not be empty")
	}
	url, token, err := c.resolve(ctx)
	if err != nil {
		return domain.AssistantReply{}, err
	}

	body, err := json.Marshal(chatRequest{
		Message:   in.Message,
		SessionID: in.SessionID,
		Image:     in.Image,
	})
	if err != nil {
		return domain.AssistantReply{}, fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return domain.AssistantReply{}, fmt.Errorf("assistant: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.AssistantReply{}, fmt.Errorf("assistant: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.AssistantReply{}, fmt.Errorf("assistant: decode response: %w", decErr)
	}
	return domain.AssistantReply{
		Message:  payload.Message,
		ImageURL: payload.ImageURL,
		Intent:   payload.Intent,
	}, nil
}

// Notify sends a fire-and-forget instruction. The reply body is discarded.
func (c *Client) Notify(ctx context.Context, message, sessionID string) error {
	_, err := c.Send(ctx, domain.AssistantRequest{Message: message, SessionID: sessionID})
	return err
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// fetchTokenFromParamStore reads the optional bearer token. A missing
// parameter means the backend is unauthenticated.
func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("assistant: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("assistant: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if errors.Is(err, paramstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("assistant: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("assistant: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("assistant: API token is empty")
	}
	return tp.Token, nil
}
