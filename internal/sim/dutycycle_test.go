package sim

import (
	"testing"
	"time"
)

func TestIsActive_WindowBoundaries(t *testing.T) {
	site := testSite() // 60s awake of every 31min cycle
	period := site.DutyCycle.CyclePeriod.Seconds()

	tests := []struct {
		name string
		t    float64
		want bool
	}{
		{"cycle start", 0, true},
		{"mid window", 30, true},
		{"last active instant", 59.999, true},
		{"window closes", 60, false},
		{"deep sleep", 900, false},
		{"last sleeping instant", period - 0.001, false},
		{"second cycle start", period, true},
		{"second cycle window closes", period + 60, false},
		{"hundredth cycle", 100*period + 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsActive(tt.t, site); got != tt.want {
				t.Errorf("IsActive(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestIsActive_ExactAwakeSeconds(t *testing.T) {
	site := testSite()
	period := int(site.DutyCycle.CyclePeriod.Seconds())
	awake := int(site.DutyCycle.Awake.Seconds())

	// Whole-second scan of one cycle: exactly awakeSeconds are active,
	// and they are the leading ones.
	active := 0
	for s := 0; s < period; s++ {
		if IsActive(float64(s), site) {
			if s >= awake {
				t.Fatalf("active at second %d, outside the leading window", s)
			}
			active++
		}
	}
	if active != awake {
		t.Errorf("active seconds = %d, want %d", active, awake)
	}
}

func TestIsActive_DutyFraction(t *testing.T) {
	site := testSite()
	site.DutyCycle.CyclePeriod = 1860 * time.Second
	site.DutyCycle.Awake = 60 * time.Second

	// Defaults give ≈3.2% duty
	active := 0
	const samples = 186000
	for s := 0; s < samples; s++ {
		if IsActive(float64(s), site) {
			active++
		}
	}
	fraction := float64(active) / samples
	if fraction < 0.030 || fraction > 0.035 {
		t.Errorf("duty fraction = %.4f, want ≈0.032", fraction)
	}
}
