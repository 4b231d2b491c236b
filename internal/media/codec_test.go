package media

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMulawRoundTripPreservesLength(t *testing.T) {
	pcm := make([]byte, 320) // 160 samples, 20ms at 8kHz
	for i := range pcm {
		pcm[i] = byte(i)
	}

	mulaw := PCMToMulaw(pcm)
	if len(mulaw) != len(pcm)/2 {
		t.Fatalf("PCMToMulaw: got %d bytes, want %d (one byte per sample)", len(mulaw), len(pcm)/2)
	}

	back := MulawToPCM(mulaw)
	if len(back) != len(pcm) {
		t.Fatalf("MulawToPCM: got %d bytes, want %d", len(back), len(pcm))
	}
}

func TestResampleLinearSameRateIsNoop(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	out, err := ResampleLinear(pcm, 8000, 8000)
	if err != nil {
		t.Fatalf("ResampleLinear returned error: %v", err)
	}
	if !bytes.Equal(out, pcm) {
		t.Errorf("ResampleLinear(same rate) = %v, want %v", out, pcm)
	}
}

func TestResampleLinearZeroRateErrors(t *testing.T) {
	if _, err := ResampleLinear([]byte{1, 2}, 0, 8000); err == nil {
		t.Error("ResampleLinear with srcRate=0 should return an error")
	}
	if _, err := ResampleLinear([]byte{1, 2}, 8000, 0); err == nil {
		t.Error("ResampleLinear with dstRate=0 should return an error")
	}
}

func TestResampleLinearDownsamplesLength(t *testing.T) {
	samples := 100
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:i*2+2], uint16(i*10))
	}

	out, err := ResampleLinear(pcm, 16000, 8000)
	if err != nil {
		t.Fatalf("ResampleLinear returned error: %v", err)
	}
	wantSamples := samples / 2
	gotSamples := len(out) / 2
	if gotSamples < wantSamples-1 || gotSamples > wantSamples {
		t.Errorf("ResampleLinear(16k->8k) produced %d samples, want ~%d", gotSamples, wantSamples)
	}
}
