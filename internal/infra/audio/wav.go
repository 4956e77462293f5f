// Package audio reads and writes the WAV files exchanged with synthesizers.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

var ErrInvalidWAV = errors.New("invalid wav data")

// DecodeWAV parses a RIFF/WAVE stream and returns the first channel as
// float samples in [-1,1] together with the sample rate.
func DecodeWAV(r io.Reader) ([]float32, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		format     uint16
		channels   int
		sampleRate int
		bits       int
		pcm        []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// tolerate truncated data chunks written by streaming encoders
			if id != "data" {
				return nil, 0, fmt.Errorf("%w: chunk %q overruns file", ErrInvalidWAV, id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			if format == formatExtensible && size >= 26 {
				format = binary.LittleEndian.Uint16(data[body+24:])
			}
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		pos = end + size%2
		if pcm != nil && haveFmt {
			break
		}
	}

	if !haveFmt || pcm == nil {
		return nil, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrInvalidWAV)
	}
	if channels < 1 || sampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: channels=%d rate=%d", ErrInvalidWAV, channels, sampleRate)
	}

	samples, err := decodeFirstChannel(pcm, format, bits, channels)
	if err != nil {
		return nil, 0, err
	}
	return samples, sampleRate, nil
}

func decodeFirstChannel(pcm []byte, format uint16, bits, channels int) ([]float32, error) {
	width := bits / 8
	if width == 0 {
		return nil, fmt.Errorf("%w: bits per sample %d", ErrInvalidWAV, bits)
	}
	frame := width * channels
	n := len(pcm) / frame
	out := make([]float32, n)

	for i := 0; i < n; i++ {
		b := pcm[i*frame : i*frame+width]
		switch {
		case format == formatPCM && bits == 8:
			out[i] = float32(int(b[0])-128) / 128
		case format == formatPCM && bits == 16:
			out[i] = float32(int16(binary.LittleEndian.Uint16(b))) / 32768
		case format == formatPCM && bits == 24:
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			out[i] = float32(v) / 8388608
		case format == formatPCM && bits == 32:
			out[i] = float32(float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648)
		case format == formatFloat && bits == 32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
		case format == formatFloat && bits == 64:
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
		default:
			return nil, fmt.Errorf("%w: unsupported format %d/%d-bit", ErrInvalidWAV, format, bits)
		}
	}
	return out, nil
}

// EncodeWAV writes samples as a mono 16-bit PCM WAV file. Samples outside
// [-1,1] are clipped.
func EncodeWAV(w io.Writer, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))

	pcm := make([]byte, 2)
	for _, s := range samples {
		binary.LittleEndian.PutUint16(pcm, uint16(toInt16(s)))
		buf.Write(pcm)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile peak-normalises samples and writes them to path.
func WriteFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, Normalize(samples), sampleRate); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}

// Normalize scales samples so the peak magnitude is 1. Silent input is
// returned unchanged. The input slice is not modified.
func Normalize(samples []float32) []float32 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	out := make([]float32, len(samples))
	if peak == 0 {
		copy(out, samples)
		return out
	}
	for i, s := range samples {
		out[i] = float32(float64(s) / peak)
	}
	return out
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32767)
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
