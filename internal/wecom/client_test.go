package wecom

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/config"
	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

type upstream struct {
	tokenHits  int
	ticketHits int
	sendBodies []map[string]interface{}
	userErr    int
	detailFail bool
}

func newUpstream(t *testing.T) (*upstream, *Client) {
	u := &upstream{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/cgi-bin/gettoken":
			u.tokenHits++
			if r.URL.Query().Get("corpid") != "ww_corp" {
				json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 40013, "errmsg": "invalid corpid"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errcode": 0, "access_token": "TOKEN1", "expires_in": 7200,
			})
		case "/cgi-bin/get_jsapi_ticket":
			u.ticketHits++
			require.Equal(t, "TOKEN1", r.URL.Query().Get("access_token"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errcode": 0, "ticket": "TICKET_abc123", "expires_in": 7200,
			})
		case "/cgi-bin/user/getuserinfo":
			if u.userErr != 0 {
				json.NewEncoder(w).Encode(map[string]interface{}{"errcode": u.userErr, "errmsg": "invalid code"})
				return
			}
			require.Equal(t, "CODE42", r.URL.Query().Get("code"))
			json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 0, "UserId": "zhangsan"})
		case "/cgi-bin/user/get":
			if u.detailFail {
				json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 60111, "errmsg": "userid not found"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"errcode": 0, "name": "张三", "position": "Engineer",
				"department": []int{1, 3}, "email": "z@example.com",
			})
		case "/cgi-bin/message/send":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			u.sendBodies = append(u.sendBodies, body)
			json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 0})
		default:
			t.Fatalf("unexpected upstream path %s", r.URL.Path)
		}
	}))
	t.Cleanup(srv.Close)

	client := New(config.WeComConfig{
		CorpID:     "ww_corp",
		CorpSecret: "secret",
		AgentID:    "1000002",
		APIBase:    srv.URL,
	}, nil)
	return u, client
}

func TestAccessTokenCached(t *testing.T) {
	u, c := newUpstream(t)
	ctx := context.Background()

	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN1", tok)

	for i := 0; i < 5; i++ {
		_, err := c.AccessToken(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, u.tokenHits, "token must be served from cache until near expiry")
}

func TestSignConfigUsesCachedTicket(t *testing.T) {
	u, c := newUpstream(t)
	ctx := context.Background()

	cfg, err := c.SignConfig(ctx, "https://example.com/app")
	require.NoError(t, err)
	assert.Equal(t, "ww_corp", cfg.AppID)
	assert.Len(t, cfg.NonceStr, 16)
	assert.Equal(t, Sign("TICKET_abc123", cfg.NonceStr, cfg.Timestamp, "https://example.com/app"), cfg.Signature)

	_, err = c.SignConfig(ctx, "https://example.com/other")
	require.NoError(t, err)
	assert.Equal(t, 1, u.ticketHits)
	assert.Equal(t, 1, u.tokenHits)
}

func TestUserInfoMergesDetail(t *testing.T) {
	_, c := newUpstream(t)

	info, err := c.UserInfo(context.Background(), "CODE42")
	require.NoError(t, err)
	assert.Equal(t, types.UserInfo{
		UserID:     "zhangsan",
		Name:       "张三",
		Email:      "z@example.com",
		Position:   "Engineer",
		Department: []string{"1", "3"},
	}, info)
}

func TestUserInfoDetailFailureTolerated(t *testing.T) {
	u, c := newUpstream(t)
	u.detailFail = true

	info, err := c.UserInfo(context.Background(), "CODE42")
	require.NoError(t, err, "code exchange alone is a usable answer")
	assert.Equal(t, "zhangsan", info.UserID)
	assert.Empty(t, info.Name)
}

func TestUserInfoUpstreamError(t *testing.T) {
	u, c := newUpstream(t)
	u.userErr = 40029

	_, err := c.UserInfo(context.Background(), "CODE42")
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 40029, upErr.Code)
}

func TestSendMessageBodies(t *testing.T) {
	u, c := newUpstream(t)
	ctx := context.Background()

	require.NoError(t, c.SendMessage(ctx, "zhangsan", types.MessageText, "hello"))
	require.NoError(t, c.SendMessage(ctx, "zhangsan", types.MessageMarkdown, "**hi**"))
	require.Len(t, u.sendBodies, 2)

	text := u.sendBodies[0]
	assert.Equal(t, "zhangsan", text["touser"])
	assert.Equal(t, "text", text["msgtype"])
	assert.Equal(t, map[string]interface{}{"content": "hello"}, text["text"])
	assert.Equal(t, "1000002", text["agentid"])

	md := u.sendBodies[1]
	assert.Equal(t, "markdown", md["msgtype"])
	assert.Equal(t, map[string]interface{}{"content": "**hi**"}, md["markdown"])
}

func TestOAuthURL(t *testing.T) {
	_, c := newUpstream(t)

	raw := c.OAuthURL("https://app.example.com/oauth/callback", "state123")
	require.True(t, strings.HasSuffix(raw, "#wechat_redirect"))

	parsed, err := url.Parse(strings.TrimSuffix(raw, "#wechat_redirect"))
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "ww_corp", q.Get("appid"))
	assert.Equal(t, "https://app.example.com/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "snsapi_base", q.Get("scope"))
	assert.Equal(t, "state123", q.Get("state"))
}

func TestDepartmentNames(t *testing.T) {
	assert.Nil(t, departmentNames(nil))
	assert.Equal(t, []string{"1", "2"}, departmentNames(json.RawMessage(`[1,2]`)))
	assert.Equal(t, []string{"Eng", "Platform"}, departmentNames(json.RawMessage(`["Eng","Platform"]`)))
	assert.Nil(t, departmentNames(json.RawMessage(`"bogus"`)))
}
