package talkie

import (
	"encoding/base64"
	"math"
	"testing"
)

func TestPCM16CodecRoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1, 1.5, -2}
	codec := PCM16Codec{}
	payload, err := codec.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := codec.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(out), len(in))
	}
	for i, want := range in {
		want = float32(math.Max(-1, math.Min(1, float64(want))))
		if math.Abs(float64(out[i]-want)) > 1.0/16384 {
			t.Errorf("sample %d = %f, want %f", i, out[i], want)
		}
	}
}

func TestPCM16CodecDecodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not base64", "@@@"},
		{"empty", ""},
		{"odd length", base64.StdEncoding.EncodeToString([]byte{1, 2, 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (PCM16Codec{}).Decode(tt.payload); !IsErrorCode(err, ErrCodeDecodeFailure) {
				t.Errorf("err = %v, want %s", err, ErrCodeDecodeFailure)
			}
		})
	}
}

func TestAnalyserLevels(t *testing.T) {
	a := NewAnalyser()
	a.Update([]float32{0.5, -0.5, 0.25, -0.25})
	if got := a.Level(); math.Abs(got-0.375) > 1e-9 {
		t.Errorf("Level = %f, want 0.375", got)
	}
	a.Update([]float32{0})
	if a.Level() != 0 || math.Abs(a.Peak()-0.375) > 1e-9 {
		t.Errorf("Level=%f Peak=%f", a.Level(), a.Peak())
	}
	a.Reset()
	if a.Peak() != 0 {
		t.Error("Reset kept the peak")
	}
	if rms := CalculateRMS([]float32{1, -1}); rms != 1 {
		t.Errorf("RMS = %f", rms)
	}
}
