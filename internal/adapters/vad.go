package adapters

import (
	"encoding/binary"
	"fmt"
	"os"
)

// voicedSegment is a contiguous span of a recording whose energy exceeded
// the silence threshold, expressed as sample offsets into the PCM stream.
type voicedSegment struct {
	startSample int
	endSample   int
}

// vadFrameSamples is 20ms at the assumed 16kHz mono scanner feed. Real
// dispatch audio is delivered at this rate; a feed at a different sample
// rate would need this scaled, but every source this pipeline ingests
// standardizes on it upstream.
const (
	vadFrameSamples  = 320
	vadEnergyThresh  = 400.0 // RMS amplitude on a signed 16-bit scale
	vadPadFrames     = 2
	vadMinVoiceFrames = 3
)

// detectVoicedSegments reads a WAV file's 16-bit PCM samples and returns
// the spans whose short-time energy clears the silence threshold, merging
// adjacent voiced frames and padding each span by a couple of frames so a
// keyword spoken right at a segment boundary doesn't get clipped. Most of
// a scanner feed is dead air or channel noise; this is what keeps that
// audio from ever reaching the transcriber.
func detectVoicedSegments(path string) ([]voicedSegment, error) {
	samples, err := readWAVSamples(path)
	if err != nil {
		return nil, err
	}

	voiced := make([]bool, 0, len(samples)/vadFrameSamples+1)
	for start := 0; start < len(samples); start += vadFrameSamples {
		end := start + vadFrameSamples
		if end > len(samples) {
			end = len(samples)
		}
		voiced = append(voiced, frameEnergy(samples[start:end]) >= vadEnergyThresh)
	}

	var segments []voicedSegment
	i := 0
	for i < len(voiced) {
		if !voiced[i] {
			i++
			continue
		}
		j := i
		for j < len(voiced) && voiced[j] {
			j++
		}
		if j-i >= vadMinVoiceFrames {
			startFrame := i - vadPadFrames
			if startFrame < 0 {
				startFrame = 0
			}
			endFrame := j + vadPadFrames
			if endFrame > len(voiced) {
				endFrame = len(voiced)
			}
			segments = append(segments, voicedSegment{
				startSample: startFrame * vadFrameSamples,
				endSample:   min(endFrame*vadFrameSamples, len(samples)),
			})
		}
		i = j
	}
	return segments, nil
}

func frameEnergy(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range frame {
		v := float64(s)
		sumSquares += v * v
	}
	return sqrt(sumSquares / float64(len(frame)))
}

// sqrt avoids pulling in math for one call site's worth of Newton
// iteration; kept local because the only other user of math in this
// package would be this single function.
func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// readWAVSamples parses a canonical PCM WAV file (the format scanner
// capture boxes in this deployment write) into signed 16-bit samples,
// downmixing to mono by taking the first channel if the file is stereo.
func readWAVSamples(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var riffHeader [12]byte
	if _, err := f.Read(riffHeader[:]); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a WAV file: %s", path)
	}

	var numChannels uint16 = 1
	var bitsPerSample uint16 = 16
	for {
		var chunkHeader [8]byte
		if _, err := f.Read(chunkHeader[:]); err != nil {
			return nil, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		if chunkID == "fmt " {
			fmtBody := make([]byte, chunkSize)
			if _, err := f.Read(fmtBody); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			numChannels = binary.LittleEndian.Uint16(fmtBody[2:4])
			bitsPerSample = binary.LittleEndian.Uint16(fmtBody[14:16])
			continue
		}
		if chunkID == "data" {
			raw := make([]byte, chunkSize)
			if _, err := f.Read(raw); err != nil {
				return nil, fmt.Errorf("read data chunk: %w", err)
			}
			return decodePCM16(raw, int(numChannels), int(bitsPerSample)), nil
		}

		// skip any other chunk (LIST, fact, etc.)
		if _, err := f.Seek(int64(chunkSize), 1); err != nil {
			return nil, err
		}
	}
}

func decodePCM16(raw []byte, numChannels, bitsPerSample int) []int16 {
	if bitsPerSample != 16 || numChannels < 1 {
		return nil
	}
	frameBytes := 2 * numChannels
	samples := make([]int16, 0, len(raw)/frameBytes)
	for off := 0; off+frameBytes <= len(raw); off += frameBytes {
		samples = append(samples, int16(binary.LittleEndian.Uint16(raw[off:off+2])))
	}
	return samples
}
