// Package http implements the signing backend's REST API with Gin.
//
// Endpoints:
//   - GET  /                   service banner
//   - GET  /api/wechat/config  signed JS-SDK payload for a canonical page URL
//   - GET  /api/oauth/url      authorization URL issuance
//   - GET  /oauth/callback     OAuth redirect back to the web app
//   - GET  /api/user/info      profile for the code in X-WeChat-Code
//   - POST /api/send/message   application message push
//   - GET  /api/health         config validation probe
//   - GET  /api/debug/info     diagnostic hints (non-production aid)
//
// Every response uses the {success, data, message} envelope the gateway
// client unwraps.
package http
