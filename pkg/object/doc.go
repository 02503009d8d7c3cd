// Package object implements the dynamic value model exchanged with the
// Greengrass nucleus.
//
// An Object is a tagged union of Null, Bool, I64, F64, Buf (UTF-8 text),
// List and Map. Its type parameter selects the reference kind that governs
// the Buf, List and Map payloads:
//
//   - Owned: the object owns its payload and every child. Release frees the
//     whole tree exactly once.
//   - Shared: a read-only view of memory owned by someone else, typically an
//     arena holding a decoded response. Release never frees anything.
//   - Mutable: an exclusive borrow that permits replacing children in place.
//
// All three kinds share one representation, so converting an Owned or
// Mutable object to a Shared view (Share, Unpack) never copies.
//
// # Constructing values
//
//	msg := object.NewMap(
//	    object.NewKV("temperature", object.F64[object.Shared](21.5)),
//	    object.NewKV("unit", object.Buf[object.Shared]("C")),
//	)
//
// Shared and Mutable constructors record the supplied string or slice
// verbatim; the caller keeps the referenced memory alive. Owned constructors
// copy text into buffers taken from DefaultHeap and take ownership of the
// supplied children.
//
// # Reading values
//
//	u := obj.Unpack()
//	switch u.Type {
//	case object.TypeBuf:
//	    fmt.Println(u.Buf)
//	case object.TypeMap:
//	    v, ok := u.Map.Get("unit")
//	    ...
//	}
//
// Text is always valid UTF-8. Unpacking a text payload that is not valid
// UTF-8 panics: the peer guarantees the encoding, so invalid bytes are a
// contract violation rather than a recoverable error.
package object
