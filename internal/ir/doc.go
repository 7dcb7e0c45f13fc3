// Package ir describes the interface of a compiled package as canonical
// values and derives content-addressed identities from it.
//
// The registry decides whether a compile produced a new package version by
// comparing these hashes, so every serialization used for identity goes
// through MarshalCanonical:
//   - object keys sorted by UTF-16 code units
//   - strings NFC normalized, no HTML escaping
//   - no floats, no null
package ir
