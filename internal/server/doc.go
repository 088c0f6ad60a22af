// Package server assembles the HTTP service: configuration, logging,
// metrics, the WeCom upstream client, and the gin router with its
// middleware chain and routes.
package server
