// Package notifier delivers operator notifications (new purchases) through
// a transport.Sender.
//
// Notify only enqueues. A worker pool drains the queue under a token-bucket
// rate limit with jittered exponential retry. Identical notifications inside
// the dedup window are suppressed; with a store attached the window survives
// restarts.
package notifier
