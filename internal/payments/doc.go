// Package payments talks to the hosted checkout provider (Lemon Squeezy):
// checkout creation, variant prices, and signed webhook deliveries.
package payments
