package timeline

import (
	"encoding/binary"

	perr "hushcut/internal/platform/errors"
)

// Format describes the PCM layout of a decoded track.
// Only uncompressed little-endian PCM is supported
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BlockAlign is the byte size of one sample frame across channels
func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

// ByteOffset maps a time in seconds to a frame-aligned byte offset
func (f Format) ByteOffset(seconds float64) int {
	if seconds < 0 {
		seconds = 0
	}
	frame := int(seconds * float64(f.SampleRate))
	return frame * f.BlockAlign()
}

// Duration returns the play time in seconds of n PCM bytes
func (f Format) Duration(n int) float64 {
	ba := f.BlockAlign()
	if ba == 0 || f.SampleRate == 0 {
		return 0
	}
	return float64(n/ba) / float64(f.SampleRate)
}

const (
	riffHeaderLen = 12
	chunkPrefix   = 8
	pcmTag        = 1
)

// DecodeWAV parses a RIFF/WAVE container and returns its format and raw PCM
// data. Chunks other than fmt and data are skipped
func DecodeWAV(raw []byte) (Format, []byte, error) {
	var zero Format
	if len(raw) < riffHeaderLen {
		return zero, nil, perr.InvalidArgf("wav: truncated header")
	}
	if string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return zero, nil, perr.InvalidArgf("wav: not a RIFF/WAVE container")
	}

	var (
		f       Format
		data    []byte
		sawFmt  bool
		sawData bool
	)

	off := riffHeaderLen
	for off+chunkPrefix <= len(raw) {
		id := string(raw[off : off+4])
		size := int(binary.LittleEndian.Uint32(raw[off+4 : off+8]))
		body := off + chunkPrefix
		if body+size > len(raw) {
			size = len(raw) - body // tolerate a short final chunk
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return zero, nil, perr.InvalidArgf("wav: fmt chunk too small")
			}
			audioFormat := binary.LittleEndian.Uint16(raw[body : body+2])
			if audioFormat != pcmTag {
				return zero, nil, perr.InvalidArgf("wav: unsupported audio format %d", audioFormat)
			}
			f.Channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			sawFmt = true
		case "data":
			data = raw[body : body+size]
			sawData = true
		}

		// chunks are word aligned
		if size%2 == 1 {
			size++
		}
		off = body + size
	}

	if !sawFmt || !sawData {
		return zero, nil, perr.InvalidArgf("wav: missing fmt or data chunk")
	}
	if f.Channels == 0 || f.SampleRate == 0 || f.BitsPerSample == 0 {
		return zero, nil, perr.InvalidArgf("wav: degenerate format %+v", f)
	}
	return f, data, nil
}

// EncodeWAV wraps PCM bytes in a minimal RIFF/WAVE container
func EncodeWAV(f Format, pcm []byte) []byte {
	byteRate := f.SampleRate * f.BlockAlign()
	out := make([]byte, 0, riffHeaderLen+24+chunkPrefix+len(pcm))

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+len(pcm)))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, pcmTag)
	out = binary.LittleEndian.AppendUint16(out, uint16(f.Channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(f.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(byteRate))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.BlockAlign()))
	out = binary.LittleEndian.AppendUint16(out, uint16(f.BitsPerSample))

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	out = append(out, pcm...)
	return out
}
