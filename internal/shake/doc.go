// Package shake holds the shake state machines: the trigger source, the
// animation controller with its one-slot catch-up queue, the message rotator
// and the hearts emitter.
//
// Nothing in this package is safe for concurrent use. Every method and every
// scheduled callback must run on the goroutine that owns the Clock: the
// Loop's Run goroutine in production, the test goroutine with VirtualClock.
package shake
