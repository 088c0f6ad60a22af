// Package resilience implements a circuit breaker for the upstream
// WeCom API. When qyapi.weixin.qq.com stops responding, the breaker
// opens and signing requests fail fast instead of stacking up behind
// a dead upstream; a half-open probe closes it again once the API
// recovers.
package resilience
