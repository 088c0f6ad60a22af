// Package types defines the data model shared between the client integration
// core and the signing backend.
//
// Core Types:
//   - BridgeConfig: signed JS-SDK configuration payload, bound to one page URL
//   - UserInfo: member profile returned by the user-info endpoint
//   - OAuthGrant: authorization URL issued by the backend
//   - SendMessageRequest: application message push payload
//
// The response envelope ({success, data, message}) used by every backend
// endpoint also lives here so both halves agree on the wire shape.
package types
