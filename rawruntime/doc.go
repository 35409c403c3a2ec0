// Package rawruntime is the boundary to the external RAW decoding engine.
//
// A Decoder hands out Sessions. Each Session wraps one native decoder handle
// and walks a single file through open, unpack, thumbnail unpack, processing
// and bitmap materialization. Sessions are not safe for concurrent use and
// must never be shared between renders.
//
// Three decoders are available:
//
//   - LibRaw, a cgo binding to libraw_r, compiled in with the "libraw" tag
//   - a stub that replaces LibRaw in default builds and fails every open
//   - a fixture decoder that reads small synthetic raw files written as YAML
//
// Example build with the real library:
//
//	CGO_ENABLED=1 go build -tags libraw
//
// The libraw_r headers and shared library must be discoverable through the
// usual CGO_CFLAGS / CGO_LDFLAGS or pkg-config paths.
//
// # Ownership
//
// The Data slice of a ProcessedImage returned by MakeImage may point into
// native memory. It stays valid only until ReleaseImage or Close is called on
// the session that produced it; callers copy what they need first.
package rawruntime
