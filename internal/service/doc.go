// Package service carries the event model shared by sessions and their
// subscribers.
//
// # Event System
//
// Every session owns an EventBus. The session loop publishes scene patches,
// per-tick frames, notices and info-panel changes; the SSE/WebSocket hub and
// tests subscribe. Publishing never blocks the loop: a subscriber whose
// channel is full misses the event, which is acceptable for frames since the
// next one supersedes it.
package service
