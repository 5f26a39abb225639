package voice

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned for audio that is not a readable PCM WAV file.
var ErrNotWAV = errors.New("audio is not a PCM WAV file")

type wavInfo struct {
	Seconds    float64
	SampleRate int
}

// readWAV derives the duration from the data chunk size and the format header.
func readWAV(audio []byte) (wavInfo, error) {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	if !dec.IsValidFile() {
		return wavInfo{}, ErrNotWAV
	}
	if err := dec.FwdToPCM(); err != nil {
		return wavInfo{}, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec <= 0 {
		return wavInfo{}, ErrNotWAV
	}
	return wavInfo{
		Seconds:    float64(dec.PCMLen()) / float64(bytesPerSec),
		SampleRate: int(dec.SampleRate),
	}, nil
}
