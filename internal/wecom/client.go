package wecom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/config"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/resilience"
	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// credentialSlack refreshes cached credentials this long before upstream
// expiry.
const credentialSlack = 60 * time.Second

// oauthAuthorizeURL is the fixed entry point for the OAuth replay.
const oauthAuthorizeURL = "https://open.weixin.qq.com/connect/oauth2/authorize"

// UpstreamError is a non-zero errcode from the WeCom API.
type UpstreamError struct {
	Code int
	Msg  string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("wecom: upstream error %d: %s", e.Code, e.Msg)
}

// Client calls the WeCom enterprise API with cached credentials.
type Client struct {
	cfg     config.WeComConfig
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	log     *logging.Logger

	mu        sync.Mutex
	token     string
	tokenExp  time.Time
	ticket    string
	ticketExp time.Time
}

// New creates a client for the configured enterprise. Transport retries are
// on (upstream calls are idempotent token/ticket/profile reads plus message
// sends keyed by upstream); request pacing keeps the tenant under the
// upstream frequency limits.
func New(cfg config.WeComConfig, log *logging.Logger) *Client {
	if log == nil {
		log = logging.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.APIBase).
		SetTimeout(10 * time.Second).
		SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("wecom-api", resilience.Settings{
		TripAfter: 5,
		Timeout:   30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		cfg:     cfg,
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(50), 50),
		breaker: breaker,
		log:     log,
	}
}

// apiResponse covers every WeCom envelope field this client reads.
type apiResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	Ticket      string `json:"ticket"`
	ExpiresIn   int64  `json:"expires_in"`
	UserID      string `json:"UserId"`

	// user/get detail fields
	Name       string          `json:"name"`
	Mobile     string          `json:"mobile"`
	Email      string          `json:"email"`
	Position   string          `json:"position"`
	Avatar     string          `json:"avatar"`
	Department json.RawMessage `json:"department"`
}

// call issues a GET (body == nil) or JSON POST and decodes the envelope.
func (c *Client) call(ctx context.Context, path string, query map[string]string, body interface{}) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req := c.resty.R().SetContext(ctx).SetQueryParams(query)

	// Only transport failures feed the breaker; a non-zero errcode means
	// the upstream is alive and answering.
	var resp *resty.Response
	err := c.breaker.Do(func() error {
		var callErr error
		if body != nil {
			resp, callErr = req.SetBody(body).Post(path)
		} else {
			resp, callErr = req.Get(path)
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("wecom: %s: %w", path, err)
	}

	var out apiResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("wecom: %s: malformed response: %w", path, err)
	}
	if out.ErrCode != 0 {
		return nil, &UpstreamError{Code: out.ErrCode, Msg: out.ErrMsg}
	}
	return &out, nil
}

// AccessToken returns a valid access token, refreshing the cache when it is
// within the expiry slack.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	resp, err := c.call(ctx, "/cgi-bin/gettoken", map[string]string{
		"corpid":     c.cfg.CorpID,
		"corpsecret": c.cfg.CorpSecret,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	c.token = resp.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - credentialSlack)
	c.log.Debug("access token refreshed")
	return c.token, nil
}

// JSAPITicket returns a valid jsapi ticket, refreshing through the access
// token as needed.
func (c *Client) JSAPITicket(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.ticket != "" && time.Now().Before(c.ticketExp) {
		defer c.mu.Unlock()
		return c.ticket, nil
	}
	c.mu.Unlock()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	resp, err := c.call(ctx, "/cgi-bin/get_jsapi_ticket", map[string]string{
		"access_token": token,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("failed to obtain jsapi ticket: %w", err)
	}

	c.mu.Lock()
	c.ticket = resp.Ticket
	c.ticketExp = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - credentialSlack)
	c.mu.Unlock()
	c.log.Debug("jsapi ticket refreshed")
	return resp.Ticket, nil
}

// SignConfig produces a signed JS-SDK payload bound to the given canonical
// page URL. Payloads are single-use: a new attempt needs a new signature.
func (c *Client) SignConfig(ctx context.Context, pageURL string) (types.BridgeConfig, error) {
	ticket, err := c.JSAPITicket(ctx)
	if err != nil {
		return types.BridgeConfig{}, err
	}

	timestamp := time.Now().Unix()
	nonce := newNonce()
	return types.BridgeConfig{
		AppID:     c.cfg.CorpID,
		Timestamp: timestamp,
		NonceStr:  nonce,
		Signature: Sign(ticket, nonce, timestamp, pageURL),
	}, nil
}

// UserInfo exchanges an authorization code for the member's identity, then
// merges in profile detail. Detail failures are tolerated: the code exchange
// alone is a usable answer.
func (c *Client) UserInfo(ctx context.Context, code string) (types.UserInfo, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return types.UserInfo{}, err
	}

	resp, err := c.call(ctx, "/cgi-bin/user/getuserinfo", map[string]string{
		"access_token": token,
		"code":         code,
	}, nil)
	if err != nil {
		return types.UserInfo{}, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	info := types.UserInfo{UserID: resp.UserID}
	if info.UserID == "" {
		return info, nil
	}

	detail, err := c.call(ctx, "/cgi-bin/user/get", map[string]string{
		"access_token": token,
		"userid":       info.UserID,
	}, nil)
	if err != nil {
		c.log.Warn("user detail unavailable", zap.String("userid", info.UserID), zap.Error(err))
		return info, nil
	}

	info.Name = detail.Name
	info.Mobile = detail.Mobile
	info.Email = detail.Email
	info.Position = detail.Position
	info.Avatar = detail.Avatar
	info.Department = departmentNames(detail.Department)
	return info, nil
}

// departmentNames normalizes the upstream department field, which is either
// a list of numeric IDs or a list of names depending on API version.
func departmentNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	var ids []int
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	names = make([]string, len(ids))
	for i, id := range ids {
		names[i] = strconv.Itoa(id)
	}
	return names
}

// SendMessage pushes a text or markdown application message to a member.
func (c *Client) SendMessage(ctx context.Context, userID string, msgType types.MessageType, content string) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"touser":  userID,
		"msgtype": string(msgType),
		"agentid": c.cfg.AgentID,
	}
	switch msgType {
	case types.MessageMarkdown:
		body["markdown"] = map[string]string{"content": content}
	default:
		body["msgtype"] = string(types.MessageText)
		body["text"] = map[string]string{"content": content}
	}

	if _, err := c.call(ctx, "/cgi-bin/message/send", map[string]string{
		"access_token": token,
	}, body); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// OAuthURL builds the authorization redirect for the OAuth replay. The
// fragment suffix is required by the host's webview router.
func (c *Client) OAuthURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("appid", c.cfg.CorpID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", "snsapi_base")
	q.Set("state", state)
	return oauthAuthorizeURL + "?" + q.Encode() + "#wechat_redirect"
}
