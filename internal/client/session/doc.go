// Package session drives the page's integration with the WeCom host.
//
// One session exists per page mount. It classifies the hosting environment
// exactly once, runs the authorization-code capture-or-redirect loop,
// sequences the signed bridge handshake, and publishes one consolidated
// state snapshot to everything that renders.
//
// State machine:
//
//	Mount -> classify -> host mismatch: HostRequired (terminal until reload)
//	                  -> code in query: configure bridge -> Ready | silently Failed
//	                  -> no code:       request oauth url -> full-page redirect
//
// A failed handshake degrades silently: sharing and profile features go
// dark, the rest of the page stays usable, and nothing is surfaced to the
// user. An authorization-URL failure is the opposite: it blocks the
// redirect and is surfaced. Nothing retries automatically; every retry is an
// explicit caller action because each handshake needs a freshly signed,
// URL-bound payload.
package session
