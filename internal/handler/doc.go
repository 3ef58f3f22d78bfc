// Package handler implements the HTTP API for butterfly sessions.
//
// # Handlers
//
// SessionHandler creates and inspects sessions and forwards pointer intents
// (click, hover, unhover) to the session loop. Each session also exposes its
// event stream over Server-Sent Events and a bidirectional WebSocket.
//
// Middleware provides panic recovery, CORS, request logging and metrics.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201,
// 202, 204). Error responses return JSON with {error, details} structure;
// details carry the user-facing hints attached to the error.
package handler
