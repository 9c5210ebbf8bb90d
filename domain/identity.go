// Package domain contains core concepts of the fan-out engine.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the opaque stable user identifier. It is owned by the external
// auth system; the engine references it but never mutates it.
type Identity string

// ConnectionID identifies one live transport channel. Assigned on a
// successful handshake, destroyed on disconnect or forced close.
type ConnectionID string
