// Package stub is the boundary between hand-written receivers and the
// dispatch engine.
//
// Go cannot synthesize types at runtime, so a receiver is a small struct
// that embeds Proxy and forwards each contract method to Invoke. The Catalog
// supplies what the engine expects from its boundary: one cached descriptor
// per contract method, and the base implementation for methods with a
// registered default body.
package stub
