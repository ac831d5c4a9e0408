package adapters

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWAV writes a minimal canonical mono 16-bit PCM WAV file so
// detectVoicedSegments can be exercised without a real recording.
func writeTestWAV(t *testing.T, samples []int16) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")

	dataBytes := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dataBytes[i*2:], uint16(s))
	}

	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, u32(uint32(36+len(dataBytes)))...)
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	buf = append(buf, u32(16)...)
	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:2], 1)          // PCM
	binary.LittleEndian.PutUint16(fmtBody[2:4], 1)           // mono
	binary.LittleEndian.PutUint32(fmtBody[4:8], 16000)       // sample rate
	binary.LittleEndian.PutUint32(fmtBody[8:12], 16000*2)    // byte rate
	binary.LittleEndian.PutUint16(fmtBody[12:14], 2)         // block align
	binary.LittleEndian.PutUint16(fmtBody[14:16], 16)        // bits per sample
	buf = append(buf, fmtBody...)

	buf = append(buf, []byte("data")...)
	buf = append(buf, u32(uint32(len(dataBytes)))...)
	buf = append(buf, dataBytes...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func TestDetectVoicedSegmentsFindsBurstAmidSilence(t *testing.T) {
	const frames = 100
	samples := make([]int16, frames*vadFrameSamples)
	// Frames 50-54 carry a loud burst; everything else is silence.
	for f := 50; f < 55; f++ {
		for i := f * vadFrameSamples; i < (f+1)*vadFrameSamples; i++ {
			samples[i] = 5000
		}
	}
	path := writeTestWAV(t, samples)

	segments, err := detectVoicedSegments(path)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected exactly one voiced segment, got %d: %+v", len(segments), segments)
	}
	// The padded segment should straddle the burst, not span the whole clip.
	if segments[0].startSample >= 50*vadFrameSamples || segments[0].endSample <= 54*vadFrameSamples {
		t.Fatalf("segment %+v does not bracket the burst frames", segments[0])
	}
	fracVoiced := float64(segments[0].endSample-segments[0].startSample) / float64(len(samples))
	if fracVoiced > 0.10 {
		t.Fatalf("voiced fraction = %.2f, want under 10%% discarded budget kept as voiced", fracVoiced)
	}
}

func TestDetectVoicedSegmentsIgnoresBriefNoiseSpikes(t *testing.T) {
	const frames = 20
	samples := make([]int16, frames*vadFrameSamples)
	// A single loud frame is below vadMinVoiceFrames and must not register.
	for i := 5 * vadFrameSamples; i < 6*vadFrameSamples; i++ {
		samples[i] = 5000
	}
	path := writeTestWAV(t, samples)

	segments, err := detectVoicedSegments(path)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected a single-frame spike to be discarded, got %+v", segments)
	}
}

func TestDetectVoicedSegmentsAllSilenceProducesNoSegments(t *testing.T) {
	samples := make([]int16, 50*vadFrameSamples)
	path := writeTestWAV(t, samples)

	segments, err := detectVoicedSegments(path)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("expected no voiced segments in silence, got %+v", segments)
	}
}
