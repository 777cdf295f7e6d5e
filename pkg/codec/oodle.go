// Package codec wraps the native Oodle LZ decompressor behind a narrow
// interface that degrades gracefully when the native library cannot be
// loaded, matching the FFI shim design in spec.md §4.1/§9.
package codec

import (
	"fmt"

	"github.com/new-world-tools/go-oodle"
)

// neverDisableThreshold is the consecutive-failure count at which the shim
// would stop attempting native decompression. spec.md's Open Questions
// treat the source's effectively-infinite threshold as intentional: never
// disable automatically.
const neverDisableThreshold = 1 << 30

// Decoder decompresses Oodle-compressed byte runs. It has two runtime
// variants: Enabled (native calls attempted), built by NewDecoder, and
// Disabled (soft fallback), built by NewDisabledDecoder.
type Decoder struct {
	enabled           bool
	disabledReason    string
	consecutiveFailed int

	// onWarning receives a human-readable message whenever decompression
	// falls back to passthrough. Nil is a valid no-op sink.
	onWarning func(string)
}

// NewDecoder returns a Decoder that will attempt native Oodle decompression
// until told otherwise. It starts Enabled; a failed call falls back to raw
// bytes for that call only, and the decoder switches to Disabled only after
// neverDisableThreshold consecutive failures (soft failure, never a panic).
func NewDecoder(onWarning func(string)) *Decoder {
	return &Decoder{enabled: true, onWarning: onWarning}
}

// NewDisabledDecoder returns a Decoder that never attempts the native call,
// for hosts that know ahead of time the codec library is unavailable (or
// for tests that want a decompression-free stub).
func NewDisabledDecoder(reason string, onWarning func(string)) *Decoder {
	return &Decoder{enabled: false, disabledReason: reason, onWarning: onWarning}
}

// Enabled reports whether the decoder still believes the native library is
// usable. It can flip to false mid-run after a failed call, but per
// neverDisableThreshold a single run effectively never locks it off.
func (d *Decoder) Enabled() bool { return d.enabled }

func (d *Decoder) warn(format string, args ...any) {
	if d.onWarning != nil {
		d.onWarning(fmt.Sprintf(format, args...))
	}
}

// Decompress decompresses comp into a buffer of uncompressedLen bytes using
// the native Oodle entry point. On any failure — library not loadable,
// entry point missing, non-positive status, or an output that doesn't look
// decompressed — it warns and returns comp unchanged, so callers always get
// bytes back even when the codec is unavailable.
func (d *Decoder) Decompress(comp []byte, uncompressedLen int) ([]byte, error) {
	if uncompressedLen <= 0 {
		return []byte{}, nil
	}
	if !d.enabled {
		d.warn("oodle decompression disabled (%s), passing raw bytes through for this entry", d.disabledReason)
		return comp, nil
	}

	out, err := oodle.Decompress(comp, int64(uncompressedLen))
	if err != nil || !looksDecompressed(out, uncompressedLen) {
		d.consecutiveFailed++
		d.warn("oodle decompress failed (%v), falling back to raw bytes for this entry", err)
		if d.consecutiveFailed >= neverDisableThreshold {
			d.enabled = false
			d.disabledReason = "consecutive failure threshold reached"
		}
		return comp, nil
	}

	d.consecutiveFailed = 0
	return out, nil
}

// looksDecompressed applies the heuristic success check from spec.md §4.1:
// when the native call reports success, sanity-check the output by sampling
// a stride across it and requiring at least 9 distinct byte values. This
// catches the case where the native call "succeeds" but silently produced
// garbage or all-zero output.
func looksDecompressed(out []byte, wantLen int) bool {
	if len(out) != wantLen {
		return false
	}
	if len(out) < 9 {
		// Too short to ever exhibit 9 distinct byte values; trust the
		// native status instead of rejecting legitimately tiny payloads.
		return true
	}
	const sampleTarget = 256
	stride := len(out) / sampleTarget
	if stride < 1 {
		stride = 1
	}
	seen := make(map[byte]struct{}, 16)
	for i := 0; i < len(out); i += stride {
		seen[out[i]] = struct{}{}
		if len(seen) >= 9 {
			return true
		}
	}
	return len(seen) >= 9
}
