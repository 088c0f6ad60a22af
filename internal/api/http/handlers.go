package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/infrastructure/logging"
	"github.com/kiedeng/wecom-integration/internal/infrastructure/monitoring"
	"github.com/kiedeng/wecom-integration/internal/shared/id"
	"github.com/kiedeng/wecom-integration/internal/shared/types"
	"github.com/kiedeng/wecom-integration/internal/shared/validate"
)

// WeComAPI is the upstream surface the handlers depend on.
type WeComAPI interface {
	SignConfig(ctx context.Context, pageURL string) (types.BridgeConfig, error)
	UserInfo(ctx context.Context, code string) (types.UserInfo, error)
	SendMessage(ctx context.Context, userID string, msgType types.MessageType, content string) error
	OAuthURL(redirectURI, state string) string
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	wecom       WeComAPI
	frontendURL string
	checkConfig func() error
	metrics     *monitoring.Metrics
	log         *logging.Logger
}

// NewHandlers creates a new handler set. checkConfig backs the health probe.
func NewHandlers(wecom WeComAPI, frontendURL string, checkConfig func() error, metrics *monitoring.Metrics, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		wecom:       wecom,
		frontendURL: frontendURL,
		checkConfig: checkConfig,
		metrics:     metrics,
		log:         log,
	}
}

// ok writes a success envelope.
func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail writes a failure envelope.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// Root serves the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "wecom-integration API",
		"version": "1.0.0",
		"status":  "running",
		"endpoints": gin.H{
			"config":         "/api/wechat/config",
			"oauth_url":      "/api/oauth/url",
			"oauth_callback": "/oauth/callback",
			"user_info":      "/api/user/info",
			"send_message":   "/api/send/message",
			"health":         "/api/health",
		},
	})
}

// WeChatConfig issues a signed JS-SDK payload. The page URL comes from the
// url query parameter, falling back to the Referer; it is canonicalized
// (query and fragment stripped) before signing so the signature matches what
// the client presents at config time.
func (h *Handlers) WeChatConfig(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		raw = c.GetHeader("Referer")
	}
	if raw == "" {
		fail(c, http.StatusBadRequest, "missing page url")
		return
	}

	canonical, err := types.CanonicalURL(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.wecom.SignConfig(c.Request.Context(), canonical)
	if err != nil {
		h.log.Error("config signing failed", zap.String("url", canonical), zap.Error(err))
		h.upstreamError("sign_config")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Debug("signature issued", zap.String("url", canonical))
	if h.metrics != nil {
		h.metrics.SignaturesIssued.Inc()
	}
	ok(c, cfg)
}

// OAuthURL issues an authorization URL. redirect_uri defaults to the web
// app's callback; state defaults to a fresh random value.
func (h *Handlers) OAuthURL(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		redirectURI = h.frontendURL + "/oauth/callback"
	}
	state := c.Query("state")
	if state == "" {
		state = id.NewStateToken().String()
	}

	ok(c, types.OAuthGrant{
		OAuthURL:    h.wecom.OAuthURL(redirectURI, state),
		RedirectURI: redirectURI,
		State:       state,
	})
}

// OAuthCallback receives the host's authorization redirect and bounces the
// browser back to the web app with the code attached.
func (h *Handlers) OAuthCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		fail(c, http.StatusBadRequest, "authorization failed, please retry")
		return
	}

	q := url.Values{}
	q.Set("code", code)
	if state := c.Query("state"); state != "" {
		q.Set("state", state)
	}
	if h.metrics != nil {
		h.metrics.OAuthRedirects.Inc()
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/?"+q.Encode())
}

// UserInfo exchanges the authorization code carried in the credential header
// for the member's profile. A query parameter is accepted as a fallback for
// manual testing.
func (h *Handlers) UserInfo(c *gin.Context) {
	code := c.GetHeader(types.AuthCodeHeader)
	if code == "" {
		code = c.Query("code")
	}
	if code == "" {
		fail(c, http.StatusBadRequest, "missing authorization code")
		return
	}

	info, err := h.wecom.UserInfo(c.Request.Context(), code)
	if err != nil {
		h.log.Warn("user info lookup failed", zap.Error(err))
		h.upstreamError("user_info")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, info)
}

// SendMessage pushes an application message to a member.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req types.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "userid and content are required")
		return
	}
	if req.Type == "" {
		req.Type = types.MessageText
	}
	if err := validate.SendMessageRequest(req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.wecom.SendMessage(c.Request.Context(), req.UserID, req.Type, req.Content); err != nil {
		h.log.Warn("message send failed", zap.String("userid", req.UserID), zap.Error(err))
		h.upstreamError("send_message")
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "message sent"})
}

// Health reports whether the backend holds a complete signing configuration.
func (h *Handlers) Health(c *gin.Context) {
	now := time.Now().Unix()
	if err := h.checkConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"status":    "unhealthy",
			"message":   err.Error(),
			"timestamp": now,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "healthy",
		"timestamp": now,
	})
}

// DebugInfo serves hints for diagnosing signature mismatches. Not wired in
// production builds.
func (h *Handlers) DebugInfo(c *gin.Context) {
	ok(c, gin.H{
		"timestamp": time.Now().Unix(),
		"tips": []string{
			"signatures bind to the canonical page url: scheme + host + path only",
			"the page and the 'url' parameter must agree before signing",
			"watch the remote console at /debug/console for client-side logs",
		},
	})
}

func (h *Handlers) upstreamError(operation string) {
	if h.metrics != nil {
		h.metrics.UpstreamErrors.WithLabelValues(operation).Inc()
	}
}
