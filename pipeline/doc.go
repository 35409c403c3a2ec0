// Package pipeline renders one RAW file into a canonical RGB bitmap.
//
// A render walks a fresh decoder session through a fixed stage sequence:
//
//	open → configure → unpack → unpack thumbnail → render → materialize → canonicalize
//
// Any stage failure stops the run with a *StageError. Whatever happens,
// the materialized decoder image (if any) is released and the session is
// closed exactly once before Render returns. Cancellation is checked after
// every decoder call and never skips that release.
//
// The package also owns the parameter → DecoderConfig mapping, channel order
// fix-up, export encoding and preview downscaling.
package pipeline
