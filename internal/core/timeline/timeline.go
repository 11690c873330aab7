// Package timeline stitches original and regenerated audio excerpts into one
// continuous sanitized track. It works purely in PCM byte ranges; character
// offsets never reach this package.
package timeline

import (
	perr "hushcut/internal/platform/errors"
)

// Source selects where a segment's excerpt comes from
type Source int

const (
	// SourceOriginal copies the original recording at [Start,End)
	SourceOriginal Source = iota
	// SourceReplacement uses the regenerated PCM buffer
	SourceReplacement
	// SourceSilence writes zeroed PCM of the original excerpt length,
	// the fail-safe when resynthesis failed for a removal segment
	SourceSilence
)

// Excerpt is one segment's contribution to the sanitized track
type Excerpt struct {
	Index       int
	Start       float64 // seconds in the original recording
	End         float64
	Source      Source
	Replacement []byte // PCM in the track format, SourceReplacement only
}

// Slice cuts the frame-aligned PCM range for [start,end) seconds out of pcm.
// Used both by the assembler and for per-speaker reference clips
func Slice(f Format, pcm []byte, start, end float64) []byte {
	lo, hi := f.ByteOffset(start), f.ByteOffset(end)
	if lo > len(pcm) {
		lo = len(pcm)
	}
	if hi > len(pcm) {
		hi = len(pcm)
	}
	if hi <= lo {
		return nil
	}
	return pcm[lo:hi]
}

// Assemble concatenates excerpts in ascending Start order into a sanitized
// PCM buffer. Gaps between consecutive excerpts, audio before the first and
// after the last are copied verbatim from the original. Output length may
// differ from the original when replacement buffers differ in length
func Assemble(f Format, original []byte, excerpts []Excerpt) ([]byte, error) {
	out := make([]byte, 0, len(original))
	cursor := 0.0

	for i, ex := range excerpts {
		if ex.End < ex.Start {
			return nil, perr.InvalidArgf("timeline: excerpt %d has end %.3f before start %.3f", ex.Index, ex.End, ex.Start)
		}
		if i > 0 && ex.Start < excerpts[i-1].Start {
			return nil, perr.InvalidArgf("timeline: excerpt %d out of order", ex.Index)
		}

		// preserve untranscribed audio between the previous excerpt and this one
		if gap := Slice(f, original, cursor, ex.Start); len(gap) > 0 {
			out = append(out, gap...)
		}

		switch ex.Source {
		case SourceOriginal:
			out = append(out, Slice(f, original, ex.Start, ex.End)...)
		case SourceReplacement:
			rep := ex.Replacement
			if ba := f.BlockAlign(); ba > 0 && len(rep)%ba != 0 {
				// a partial trailing frame would shift every sample after it
				rep = rep[:len(rep)-len(rep)%ba]
			}
			out = append(out, rep...)
		case SourceSilence:
			out = append(out, make([]byte, len(Slice(f, original, ex.Start, ex.End)))...)
		default:
			return nil, perr.InvalidArgf("timeline: excerpt %d has unknown source %d", ex.Index, ex.Source)
		}

		if ex.End > cursor {
			cursor = ex.End
		}
	}

	// trailing audio after the last excerpt
	if lo := f.ByteOffset(cursor); lo < len(original) {
		out = append(out, original[lo:]...)
	}

	return out, nil
}
