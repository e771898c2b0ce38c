package somfy

import (
	"fmt"
	"time"
)

// Device describes the demodulator settings that isolate Somfy RTS rows. The
// decoder itself never reads them; they configure the receiver upstream.
type Device struct {
	Name       string
	Modulation string
	ShortWidth time.Duration
	LongWidth  time.Duration
	SyncWidth  time.Duration
	GapLimit   time.Duration
	ResetLimit time.Duration
	Tolerance  time.Duration

	// The flex decoder names modulations differently and matches pulses
	// looser than the built-in decoder, so it carries its own values.
	FlexModulation string
	FlexTolerance  time.Duration
}

// RTS is the nominal device definition. Bit width is ~604 us, RZ, short=long.
// A 3000 us gap limit splits the long start pulse from the first frame into a
// separate row; a 10000 us reset limit stays below the ~30 ms inter-frame space.
var RTS = Device{
	Name:       "Somfy RTS",
	Modulation: "OOK_PULSE_PCM_RZ",
	ShortWidth: 604 * time.Microsecond,
	LongWidth:  604 * time.Microsecond,
	SyncWidth:  2416 * time.Microsecond,
	GapLimit:   3000 * time.Microsecond,
	ResetLimit: 10000 * time.Microsecond,
	Tolerance:  20 * time.Microsecond,

	FlexModulation: "OOK_PCM",
	FlexTolerance:  40 * time.Microsecond,
}

// FlexSpec renders the device as an rtl_433 flex decoder ("-X") argument.
func (d Device) FlexSpec(name string) string {
	if name == "" {
		name = "somfy"
	}
	us := func(v time.Duration) int64 { return v.Microseconds() }
	return fmt.Sprintf("n=%s,m=%s,s=%d,l=%d,t=%d,r=%d,g=%d,y=%d",
		name, d.FlexModulation, us(d.ShortWidth), us(d.LongWidth), us(d.FlexTolerance),
		us(d.ResetLimit), us(d.GapLimit), us(d.SyncWidth))
}
