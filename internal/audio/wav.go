// Package audio inspects synthesized audio artifacts.
//
// Only the uncompressed RIFF/WAVE container is understood. The parser reads
// headers and chunk sizes; sample data is never decoded.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrFormat marks a container that could be read but is not a usable WAV file.
var ErrFormat = errors.New("invalid wav")

const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	// maxFmtBody is the largest fmt body the parser reads (WAVE_FORMAT_EXTENSIBLE).
	maxFmtBody = 40
)

// Header is the subset of a WAV container needed for validation.
type Header struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int64
}

// Frames returns the number of sample frames in the data chunk.
func (h Header) Frames() int64 {
	width := int64(h.Channels * ((h.BitsPerSample + 7) / 8))
	if width == 0 {
		return 0
	}
	return h.DataSize / width
}

// Duration returns the playback length in seconds.
func (h Header) Duration() float64 {
	if h.SampleRate == 0 {
		return 0
	}
	return float64(h.Frames()) / float64(h.SampleRate)
}

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// ReadHeader parses the RIFF/WAVE chunk structure up to the data chunk.
// Structural problems wrap ErrFormat; anything else is an I/O error.
func ReadHeader(r io.ReadSeeker) (Header, error) {
	var h Header

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return h, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return h, err
	}

	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return h, formatErr("file too short for RIFF header")
		}
		return h, err
	}
	if !bytes.Equal(riff[0:4], []byte("RIFF")) {
		return h, formatErr("file does not start with RIFF id")
	}
	if !bytes.Equal(riff[8:12], []byte("WAVE")) {
		return h, formatErr("not a WAVE file")
	}

	sawFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return h, formatErr("fmt chunk and/or data chunk missing")
			}
			return h, err
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return h, err
			}
			if size > end-pos {
				return h, formatErr("fmt chunk too large (%d bytes)", size)
			}
			if err := readFmt(r, size, &h); err != nil {
				return h, err
			}
			sawFmt = true
		case "data":
			if !sawFmt {
				return h, formatErr("data chunk before fmt chunk")
			}
			h.DataSize = size
			return h, nil
		default:
			// Chunks are word aligned.
			if _, err := r.Seek(size+size%2, io.SeekCurrent); err != nil {
				return h, err
			}
		}
	}
}

func readFmt(r io.ReadSeeker, size int64, h *Header) error {
	if size < 16 {
		return formatErr("fmt chunk too small (%d bytes)", size)
	}
	n := min(size, maxFmtBody)
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return formatErr("truncated fmt chunk")
		}
		return err
	}
	// Chunks are word aligned.
	if rest := size + size%2 - n; rest > 0 {
		if _, err := r.Seek(rest, io.SeekCurrent); err != nil {
			return err
		}
	}

	le := binary.LittleEndian
	h.AudioFormat = le.Uint16(body[0:2])
	h.Channels = int(le.Uint16(body[2:4]))
	h.SampleRate = int(le.Uint32(body[4:8]))
	h.BitsPerSample = int(le.Uint16(body[14:16]))

	if h.AudioFormat == formatExtensible && size >= 26 {
		// The first two bytes of the sub-format GUID carry the real format tag.
		h.AudioFormat = le.Uint16(body[24:26])
	}
	if h.AudioFormat != formatPCM {
		return formatErr("unknown format: %d", h.AudioFormat)
	}
	if h.Channels == 0 {
		return formatErr("bad # of channels")
	}
	if h.BitsPerSample == 0 {
		return formatErr("bad sample width")
	}
	if h.SampleRate == 0 {
		return formatErr("bad sample rate")
	}
	return nil
}

// EncodePCM wraps raw little-endian PCM data in a canonical 44-byte WAV header.
func EncodePCM(pcm []byte, sampleRate, channels, bytesPerSample int) []byte {
	dataLen := len(pcm)
	fileLen := 36 + dataLen // 44-byte header minus the 8-byte RIFF preamble

	buf := &bytes.Buffer{}
	buf.Grow(44 + dataLen)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(fileLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*bytesPerSample)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bytesPerSample))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(bytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(pcm)

	return buf.Bytes()
}

// Silence returns a mono 16-bit WAV of the given length, filled with zeros.
func Silence(sampleRate int, seconds float64) []byte {
	frames := int(float64(sampleRate) * seconds)
	return EncodePCM(make([]byte, frames*2), sampleRate, 1, 2)
}
