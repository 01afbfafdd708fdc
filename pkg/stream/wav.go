package stream

import (
	"bytes"
	"encoding/binary"
)

// WriteWAVHeader appends a canonical 44-byte PCM WAV header for
// dataBytes of audio at sampleRate/channels/bitsPerSample to buf, matching
// spec.md §4.9 Slicing step 3 ("write a new WAV header followed by
// concatenated chunk slices").
func WriteWAVHeader(buf *bytes.Buffer, sampleRate, channels, bitsPerSample int, dataBytes int64) {
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataBytes)) //nolint:errcheck // bytes.Buffer.Write never errors
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	format := uint16(1)                                // PCM
	if bitsPerSample == 32 {
		format = 3 // IEEE float, matching the f32 capture format
	}
	binary.Write(buf, binary.LittleEndian, format)
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataBytes))
}
