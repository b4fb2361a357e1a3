package talkie

import "testing"

func TestNewVoxTriggerRejectsInvertedThresholds(t *testing.T) {
	if _, err := NewVoxTrigger(0.02, 0.02); err == nil {
		t.Error("equal thresholds accepted")
	}
	if _, err := NewVoxTrigger(0.01, 0.05); !IsErrorCode(err, ErrCodeConfigInvalid) {
		t.Errorf("err = %v, want %s", err, ErrCodeConfigInvalid)
	}
}

func TestVoxHysteresis(t *testing.T) {
	tests := []struct {
		name       string
		trace      []float64
		wantStarts int
		wantStops  int
	}{
		{
			name:       "single crossing without release",
			trace:      []float64{0.01, 0.05, 0.03, 0.02, 0.039, 0.041, 0.02, 0.016},
			wantStarts: 1,
		},
		{
			name:       "crossing then release",
			trace:      []float64{0.01, 0.05, 0.03, 0.02, 0.01, 0.005},
			wantStarts: 1,
			wantStops:  1,
		},
		{
			name:  "never crosses upper",
			trace: []float64{0.01, 0.039, 0.03, 0.04},
		},
		{
			name:       "two bursts",
			trace:      []float64{0.05, 0.01, 0.02, 0.06, 0.0},
			wantStarts: 2,
			wantStops:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVoxTrigger(0.04, 0.015)
			if err != nil {
				t.Fatal(err)
			}
			v.SetEnabled(true)
			starts, stops := 0, 0
			for _, level := range tt.trace {
				switch v.Observe(level) {
				case VoxStart:
					starts++
				case VoxStop:
					stops++
				}
			}
			if starts != tt.wantStarts || stops != tt.wantStops {
				t.Errorf("starts=%d stops=%d, want %d/%d", starts, stops, tt.wantStarts, tt.wantStops)
			}
		})
	}
}

func TestVoxDisabledIgnoresEnergy(t *testing.T) {
	v, _ := NewVoxTrigger(0.04, 0.015)
	if d := v.Observe(1); d != VoxHold {
		t.Errorf("disabled trigger returned %v", d)
	}
}

func TestVoxDisableWhileActiveForcesStop(t *testing.T) {
	v, _ := NewVoxTrigger(0.04, 0.015)
	v.SetEnabled(true)
	if d := v.Observe(0.5); d != VoxStart {
		t.Fatalf("Observe = %v, want start", d)
	}
	if d := v.SetEnabled(false); d != VoxStop {
		t.Errorf("SetEnabled(false) = %v, want stop", d)
	}
	if v.Active() || v.Enabled() {
		t.Error("trigger still active after disable")
	}
	if d := v.SetEnabled(false); d != VoxHold {
		t.Errorf("repeated disable = %v", d)
	}
}
