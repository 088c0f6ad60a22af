package types

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// AuthCodeHeader carries the captured authorization code on every request
// from the page to the backend.
const AuthCodeHeader = "X-WeChat-Code"

// BridgeConfig is the signed payload that unlocks the vendor JS-SDK bridge.
// It is bound to the exact page URL it was signed for and must not be reused
// across navigation.
type BridgeConfig struct {
	AppID     string `json:"appId"`
	Timestamp int64  `json:"timestamp"`
	NonceStr  string `json:"nonceStr"`
	Signature string `json:"signature"`
}

// UserInfo is a WeCom member profile. Everything except the ID is optional;
// fields pass through from the upstream API untouched.
type UserInfo struct {
	UserID     string   `json:"UserId"`
	Name       string   `json:"name,omitempty"`
	Mobile     string   `json:"mobile,omitempty"`
	Email      string   `json:"email,omitempty"`
	Department []string `json:"department,omitempty"`
	Position   string   `json:"position,omitempty"`
	Avatar     string   `json:"avatar,omitempty"`
}

// OAuthGrant is the backend's answer to an authorization-URL request.
type OAuthGrant struct {
	OAuthURL    string `json:"oauth_url"`
	RedirectURI string `json:"redirect_uri"`
	State       string `json:"state"`
}

// MessageType enumerates supported application message bodies.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageMarkdown MessageType = "markdown"
)

// SendMessageRequest pushes an application message to a member.
type SendMessageRequest struct {
	UserID  string      `json:"userid" binding:"required"`
	Type    MessageType `json:"type"`
	Content string      `json:"content" binding:"required"`
}

// Envelope is the uniform response wrapper every backend endpoint emits.
// Data is raw so callers decode it into the shape they expect.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	// Some deployments emit "error" instead of "message"; accept both.
	Error string `json:"error,omitempty"`
}

// FailureMessage returns whichever failure field the envelope carries.
func (e *Envelope) FailureMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// CanonicalURL reduces a page URL to scheme + host + path. The JS-SDK
// signature is computed over this canonical form, so query and fragment must
// be stripped identically on both sides of the handshake.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid page url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page url %q missing scheme or host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}
