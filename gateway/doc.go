// Package gateway serves explorers over WebSocket: one session per
// connection, each with its own parameter set bound to the shared dataset.
// Clients send schema-validated control messages (set, reset, viewport)
// and receive artifact metadata frames followed by the PNG bytes.
package gateway
