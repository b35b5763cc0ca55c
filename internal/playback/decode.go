package playback

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Output format shared by every decoded sample: interleaved stereo,
// signed 16-bit little endian.
const (
	channelCount   = 2
	bytesPerSample = 2
	frameSize      = channelCount * bytesPerSample
)

var (
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrSampleRate        = errors.New("sample rate does not match output")
)

// decodeFile reads a .wav or .mp3 file into output PCM.
func decodeFile(path string, sampleRate int) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pcm []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		pcm, err = decodeWAV(bytes.NewReader(raw), sampleRate)
	case ".mp3":
		pcm, err = decodeMP3(bytes.NewReader(raw), sampleRate)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, nil
}

func decodeWAV(r io.ReadSeeker, sampleRate int) ([]byte, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrUnsupportedFormat)
	}
	if int(d.SampleRate) != sampleRate {
		return nil, fmt.Errorf("%w: %d Hz, want %d Hz", ErrSampleRate, d.SampleRate, sampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	chans := int(d.NumChans)
	if chans < 1 || chans > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, chans)
	}

	frames := len(buf.Data) / chans
	out := make([]byte, frames*frameSize)
	for i := 0; i < frames; i++ {
		left := toInt16(buf.Data[i*chans], int(d.BitDepth))
		right := left
		if chans == 2 {
			right = toInt16(buf.Data[i*chans+1], int(d.BitDepth))
		}
		binary.LittleEndian.PutUint16(out[i*frameSize:], uint16(left))
		binary.LittleEndian.PutUint16(out[i*frameSize+2:], uint16(right))
	}
	return out, nil
}

// toInt16 rescales a decoded integer sample of the given bit depth.
// 8-bit wav data is unsigned.
func toInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16((v - 128) << 8)
	case 16:
		return int16(v)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return 0
	}
}

// decodeMP3 relies on go-mp3 always producing 16-bit stereo.
func decodeMP3(r io.Reader, sampleRate int) ([]byte, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	if d.SampleRate() != sampleRate {
		return nil, fmt.Errorf("%w: %d Hz, want %d Hz", ErrSampleRate, d.SampleRate(), sampleRate)
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	return pcm[:len(pcm)-len(pcm)%frameSize], nil
}

// loopReader replays data forever. It never returns io.EOF.
type loopReader struct {
	data []byte
	pos  int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		if r.pos >= len(r.data) {
			r.pos = 0
		}
		c := copy(p[n:], r.data[r.pos:])
		r.pos += c
		n += c
	}
	return n, nil
}
