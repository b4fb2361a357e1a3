package talkie

import "fmt"

// VoxDecision is what the session should do after a VOX observation.
type VoxDecision int

const (
	VoxHold VoxDecision = iota
	VoxStart
	VoxStop
)

func (d VoxDecision) String() string {
	switch d {
	case VoxStart:
		return "start"
	case VoxStop:
		return "stop"
	default:
		return "hold"
	}
}

// VoxTrigger toggles transmission from measured energy with hysteresis:
// above upper starts, below lower stops, anything between holds. It is owned
// by the session goroutine and is not safe for concurrent use.
type VoxTrigger struct {
	upper   float64
	lower   float64
	enabled bool
	active  bool
}

func NewVoxTrigger(upper, lower float64) (*VoxTrigger, error) {
	if lower >= upper {
		return nil, NewConfigError(fmt.Sprintf("VOX lower threshold %.4f must be below upper %.4f", lower, upper))
	}
	return &VoxTrigger{upper: upper, lower: lower}, nil
}

// Observe feeds one energy sample.
func (v *VoxTrigger) Observe(level float64) VoxDecision {
	if !v.enabled {
		return VoxHold
	}
	switch {
	case !v.active && level > v.upper:
		v.active = true
		return VoxStart
	case v.active && level < v.lower:
		v.active = false
		return VoxStop
	}
	return VoxHold
}

// SetEnabled switches VOX on or off. Disabling while active returns VoxStop.
func (v *VoxTrigger) SetEnabled(on bool) VoxDecision {
	if on == v.enabled {
		return VoxHold
	}
	v.enabled = on
	if !on && v.active {
		v.active = false
		return VoxStop
	}
	return VoxHold
}

func (v *VoxTrigger) Enabled() bool { return v.enabled }

// Active reports whether VOX currently holds the transmitter open.
func (v *VoxTrigger) Active() bool { return v.active }

// Reset clears the active flag without changing Enabled.
func (v *VoxTrigger) Reset() {
	v.active = false
}
