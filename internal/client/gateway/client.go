// Package gateway is the thin transport between the integration session and
// the signing backend.
//
// Two contract points are load-bearing for the session: every request
// carries the current authorization code in the X-WeChat-Code header once
// one is set, and every response is unwrapped from the
// {success, data, message} envelope before the session sees it. Transport
// failures surface as errors; success:false envelopes surface as *APIError.
// The client never retries: a signed handshake payload is bound to one
// attempt.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// AuthHeader carries the captured authorization code to the backend.
const AuthHeader = types.AuthCodeHeader

// APIError is a backend-reported failure (a success:false envelope).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway: request failed with status %d", e.Status)
	}
	return "gateway: " + e.Message
}

// Client talks to the backend's four endpoints.
type Client struct {
	resty *resty.Client

	mu       sync.RWMutex
	authCode string
}

// New creates a gateway client against the backend base URL.
func New(baseURL string) *Client {
	c := &Client{}
	c.resty = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json")
	c.resty.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if code := c.AuthCode(); code != "" {
			req.SetHeader(AuthHeader, code)
		}
		return nil
	})
	return c
}

// SetAuthCode arms the credential header for all subsequent requests.
func (c *Client) SetAuthCode(code string) {
	c.mu.Lock()
	c.authCode = code
	c.mu.Unlock()
}

// AuthCode returns the currently armed authorization code, if any.
func (c *Client) AuthCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authCode
}

// get issues a GET and unwraps the envelope into out (out may be nil).
func (c *Client) get(ctx context.Context, path string, query map[string]string, out interface{}) error {
	req := c.resty.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("gateway: GET %s: %w", path, err)
	}
	return unwrap(resp, out)
}

// post issues a POST with a JSON body and unwraps the envelope.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.resty.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return fmt.Errorf("gateway: POST %s: %w", path, err)
	}
	return unwrap(resp, out)
}

// unwrap peels the response envelope, converting success:false into
// *APIError and decoding data into out.
func unwrap(resp *resty.Response, out interface{}) error {
	var env types.Envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("gateway: malformed response (status %d): %w", resp.StatusCode(), err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode(), Message: env.FailureMessage()}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("gateway: malformed payload: %w", err)
	}
	return nil
}

// Config fetches a signed JS-SDK payload for the given page URL. The URL
// must already be canonical; the signature only matches the exact string
// that was signed.
func (c *Client) Config(ctx context.Context, pageURL string) (types.BridgeConfig, error) {
	var cfg types.BridgeConfig
	err := c.get(ctx, "/api/wechat/config", map[string]string{"url": pageURL}, &cfg)
	return cfg, err
}

// OAuthURL requests an authorization URL. redirectURI and state are
// optional; the backend fills defaults.
func (c *Client) OAuthURL(ctx context.Context, redirectURI, state string) (types.OAuthGrant, error) {
	query := map[string]string{}
	if redirectURI != "" {
		query["redirect_uri"] = redirectURI
	}
	if state != "" {
		query["state"] = state
	}
	var grant types.OAuthGrant
	err := c.get(ctx, "/api/oauth/url", query, &grant)
	return grant, err
}

// UserInfo fetches the profile for the code carried in the request header.
func (c *Client) UserInfo(ctx context.Context) (types.UserInfo, error) {
	var info types.UserInfo
	err := c.get(ctx, "/api/user/info", nil, &info)
	return info, err
}

// SendMessage pushes an application message through the backend.
func (c *Client) SendMessage(ctx context.Context, req types.SendMessageRequest) error {
	return c.post(ctx, "/api/send/message", req, nil)
}

// Health probes the backend's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/api/health", nil, nil)
}
