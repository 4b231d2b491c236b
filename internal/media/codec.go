// Package media implements the Media Bridge: a bidirectional audio relay
// between the carrier's voice WebSocket and the AI voice provider's
// WebSocket. The relay forwards audio payloads unchanged; the mu-law/PCM
// and resampling helpers in this file are not called by the Bridge.
package media

import (
	"encoding/binary"
	"fmt"

	"github.com/zaf/g711"
)

// SampleRate is the carrier-side sample rate for G.711 mu-law audio.
const SampleRate = 8000

// PCMToMulaw encodes 16-bit little-endian PCM samples to G.711 mu-law, the
// format the carrier's media stream expects on the wire.
func PCMToMulaw(pcm []byte) []byte {
	return g711.EncodeUlaw(pcm)
}

// MulawToPCM decodes G.711 mu-law frames from the carrier into 16-bit
// little-endian PCM for the AI voice provider.
func MulawToPCM(mulaw []byte) []byte {
	return g711.DecodeUlaw(mulaw)
}

// ResampleLinear performs simple linear-interpolation resampling from
// srcRate to dstRate, mirroring the carrier-bridge's resampling rather than
// pulling in a separate DSP dependency for single-channel telephony audio.
func ResampleLinear(pcm []byte, srcRate, dstRate uint32) ([]byte, error) {
	if srcRate == dstRate {
		return pcm, nil
	}
	if srcRate == 0 || dstRate == 0 {
		return nil, fmt.Errorf("resample: invalid rate src=%d dst=%d", srcRate, dstRate)
	}

	ratio := float64(srcRate) / float64(dstRate)
	inSamples := len(pcm) / 2
	outSamples := int(float64(inSamples) / ratio)
	out := make([]byte, outSamples*2)

	for i := 0; i < outSamples; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx+1 >= inSamples {
			return out[:i*2], nil
		}

		s1 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*2 : srcIdx*2+2]))
		s2 := int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*2 : (srcIdx+1)*2+2]))
		interp := int16(float64(s1)*(1-frac) + float64(s2)*frac)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(interp))
	}
	return out, nil
}
