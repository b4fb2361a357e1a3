package talkie

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Codec turns captured samples into the text-safe payload of a VoiceMessage
// and back.
type Codec interface {
	Encode(samples []float32) (string, error)
	Decode(payload string) ([]float32, error)
}

// PCM16Codec encodes mono samples as 16-bit little-endian PCM in standard
// base64. Samples outside [-1, 1] are clipped.
type PCM16Codec struct{}

var _ Codec = PCM16Codec{}

func (PCM16Codec) Encode(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", NewInvalidMessageError("empty chunk")
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(floatToPCM16(s)))
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (PCM16Codec) Decode(payload string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, Wrapf(err, ErrCodeDecodeFailure, "payload is not base64")
	}
	if len(data) == 0 {
		return nil, NewDecodeError("payload is empty")
	}
	if len(data)%2 != 0 {
		return nil, NewDecodeError("truncated PCM16 payload").AddDetail("bytes", len(data))
	}
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples, nil
}

func floatToPCM16(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s >= 1 {
		return math.MaxInt16
	}
	if s <= -1 {
		return math.MinInt16
	}
	return int16(s * 32767)
}
