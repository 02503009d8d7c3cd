// Package wire holds the codecs that move objects on and off the wire.
//
// IPC payloads are JSON. DecodeJSON places the decoded tree in a
// caller-supplied arena and fails with ggerr.Nomem rather than truncating.
// AppendJSON and EncodeJSON serialize any object, preserving map entry
// order and duplicate keys.
//
// The package also carries the CBOR modes used for protocol logs and a
// CBORObject wrapper that embeds an object in a CBOR document.
//
// # Depth
//
// Lists and maps may nest at most MaxDepth levels in either direction.
// Deeper input yields ggerr.Range.
//
// # Native values
//
// ToNative and FromNative bridge objects and plain Go values (maps, slices,
// scalars) for callers that prefer encoding/json or YAML shaped data.
package wire
