// Package env classifies the hosting environment from the runtime's
// user-agent string.
//
// The page only works inside the WeCom (企业微信) client. Personal WeChat
// renders the same markup but cannot grant the enterprise JS-SDK
// capabilities, so the two must be told apart before any handshake runs.
package env

import "strings"

// Classification identifies the hosting client.
type Classification int

const (
	// Unknown means classification has not run yet.
	Unknown Classification = iota
	// TargetClient is the WeCom enterprise client.
	TargetClient
	// CompanionClient is personal WeChat: same rendering engine, no
	// enterprise capability grants.
	CompanionClient
	// Neither is any other browser.
	Neither
)

const (
	targetMarker    = "wxwork"
	companionMarker = "micromessenger"
)

// Classify inspects a user-agent string once per page load. WeCom user
// agents carry both markers, so the target marker is checked first.
func Classify(userAgent string) Classification {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, targetMarker):
		return TargetClient
	case strings.Contains(ua, companionMarker):
		return CompanionClient
	default:
		return Neither
	}
}

func (c Classification) String() string {
	switch c {
	case TargetClient:
		return "wecom"
	case CompanionClient:
		return "wechat"
	case Neither:
		return "browser"
	default:
		return "unknown"
	}
}
