package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupportedWAV is returned for WAV files that are not 16-bit mono PCM.
var ErrUnsupportedWAV = errors.New("unsupported WAV format")

const (
	wavFormatPCM = 1
	wavBitDepth  = 16
)

// DecodeWAV decodes a 16-bit mono PCM WAV file into samples. Chunks other
// than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) (samples []int16, sampleRate int, err error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return nil, 0, fmt.Errorf("read WAV header: %w", err)
	}
	if d.NumChans == 0 {
		return nil, 0, fmt.Errorf("missing fmt chunk")
	}
	if d.WavAudioFormat != wavFormatPCM || d.NumChans != 1 || d.BitDepth != wavBitDepth {
		return nil, 0, fmt.Errorf("format=%d channels=%d bits=%d: %w",
			d.WavAudioFormat, d.NumChans, d.BitDepth, ErrUnsupportedWAV)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read WAV data: %w", err)
	}
	samples = make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, int(d.SampleRate), nil
}

// WriteWAV writes samples to w as a 16-bit mono PCM WAV file. The encoder
// seeks back to patch the chunk sizes once the samples are written.
func WriteWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 1, wavFormatPCM)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish WAV file: %w", err)
	}
	return nil
}
