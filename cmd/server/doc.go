// Package main is the entry point for the WeCom integration backend.
//
// The server signs JS-SDK configuration payloads for pages embedded in
// the WeCom client, exchanges OAuth codes for member identities, and
// relays application messages through the WeCom API.
//
// Architecture:
//
//	Frontend (embedded page) → Go Backend → WeCom API (qyapi.weixin.qq.com)
//
// Configuration:
//   - Environment variables (CORP_ID, CORP_SECRET, AGENT_ID, ...)
//   - Optional YAML file via -config (file values win)
//   - Defaults for development
//
// Usage:
//
//	# Environment-only
//	CORP_ID=ww... CORP_SECRET=... AGENT_ID=1000002 ./server
//
//	# With a config file
//	./server -config config.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
