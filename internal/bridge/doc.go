// Package bridge accepts work dispatched by a remote gateway, executes it
// out-of-band against an agent runner, and reports the result back.
//
// Lifecycle of a dispatched task:
//
//	queued -> running -> completed | failed
//
// Status only moves forward. Callers poll by session id, and exactly one
// callback is attempted once the task reaches a terminal status. Callback
// failures are logged and never retried.
package bridge
