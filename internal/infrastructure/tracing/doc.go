// Package tracing assigns request IDs and records per-request spans.
//
// Every inbound HTTP request gets a req_* ID, either taken from the
// X-Request-ID header or generated. The ID is stored on the request
// context, echoed in the response header, and attached to the span
// that is logged when the request completes. Pages embedded in the
// WeCom client cannot be debugged in place, so correlating a frontend
// report with backend logs happens through these IDs.
package tracing
