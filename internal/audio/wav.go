package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// WAV format tags
const (
	FormatPCM   = 1
	FormatFloat = 3
)

const headerSize = 44

// Common errors for WAV handling
var (
	// ErrNotWAV is returned when data does not start with a RIFF/WAVE header
	ErrNotWAV = errors.New("not a WAV file")

	// ErrUnsupportedFormat is returned for encodings other than PCM16 and float32
	ErrUnsupportedFormat = errors.New("unsupported WAV format")
)

// Format describes the audio stored in a WAV file.
type Format struct {
	AudioFormat   int
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// BlockAlign returns the number of bytes per sample frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration returns the play time of dataLen bytes of audio.
func (f Format) Duration(dataLen int) time.Duration {
	if f.SampleRate == 0 || f.BlockAlign() == 0 {
		return 0
	}
	frames := dataLen / f.BlockAlign()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Encode writes mono samples as a 16-bit PCM WAV file. Samples outside
// [-1, 1] are clipped.
func Encode(w io.Writer, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	dataLen := len(samples) * 2
	var buf bytes.Buffer
	buf.Grow(headerSize + dataLen)

	// RIFF header
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen)) //nolint:gosec
	buf.WriteString("WAVE")

	// "fmt " chunk
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(FormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))   //nolint:gosec
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2)) //nolint:gosec
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	// "data" chunk
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen)) //nolint:gosec
	var frame [2]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint16(frame[:], uint16(toPCM16(s))) //nolint:gosec
		buf.Write(frame[:])
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("unable to write WAV data: %w", err)
	}
	return nil
}

// WriteFile encodes samples into the file at path, creating or truncating it.
func WriteFile(path string, samples []float32, sampleRate int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create WAV file: %w", err)
	}
	if err := Encode(f, samples, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func toPCM16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s >= 1 {
		return math.MaxInt16
	}
	if s <= -1 {
		return -math.MaxInt16
	}
	return int16(s * math.MaxInt16)
}

// Decode parses a WAV file and returns its samples as floats in [-1, 1].
// Multi-channel audio is returned interleaved.
func Decode(data []byte) ([]float32, Format, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, Format{}, ErrNotWAV
	}

	var (
		format  Format
		haveFmt bool
		pos     = 12
	)
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, Format{}, fmt.Errorf("%w: chunk %q overruns file", ErrNotWAV, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, Format{}, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format = Format{
				AudioFormat:   int(binary.LittleEndian.Uint16(data[body:])),
				Channels:      int(binary.LittleEndian.Uint16(data[body+2:])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4:])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14:])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, Format{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAV)
			}
			samples, err := decodeSamples(data[body:body+size], format)
			return samples, format, err
		}

		// Chunks are padded to an even size.
		pos = body + size + size%2
	}
	return nil, Format{}, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

func decodeSamples(raw []byte, f Format) ([]float32, error) {
	switch {
	case f.AudioFormat == FormatPCM && f.BitsPerSample == 16:
		out := make([]float32, len(raw)/2)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / math.MaxInt16 //nolint:gosec
		}
		return out, nil
	case f.AudioFormat == FormatFloat && f.BitsPerSample == 32:
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupportedFormat, f.AudioFormat, f.BitsPerSample)
	}
}
