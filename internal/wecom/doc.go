// Package wecom is the upstream WeCom (企业微信) API client used by the
// signing backend.
//
// It owns the two short-lived enterprise credentials (the access token and
// the jsapi ticket), caching each until just before expiry, and exposes the
// operations the HTTP API is built on:
//   - SignConfig: SHA-1 JS-SDK signature over a canonical page URL
//   - UserInfo: authorization-code exchange plus best-effort detail merge
//   - SendMessage: text/markdown application messages
//   - OAuthURL: the authorize redirect URL for the OAuth replay
//
// Upstream failures carry the WeCom errcode via *UpstreamError.
package wecom
