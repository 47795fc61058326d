package sim

import (
	"math"
	"testing"
)

func TestSoilMoisture_BoundsAlwaysHold(t *testing.T) {
	site := testSite()
	site.Soil.EvaporationPerSecond = 0.5 / 3600 // aggressive drying
	model := NewSoilMoistureModel(site)

	dt := 60.0
	for tm := dt; tm <= 10*86400; tm += dt {
		vwc, err := model.Step(dt, tm)
		if err != nil {
			t.Fatalf("Step(t=%v) failed: %v", tm, err)
		}
		if vwc < site.Soil.MinVWC || vwc > site.Soil.MaxVWC {
			t.Fatalf("VWC %.4f out of bounds [%.1f, %.1f] at t=%v", vwc, site.Soil.MinVWC, site.Soil.MaxVWC, tm)
		}
	}
}

func TestSoilMoisture_DroughtIsMonotonic(t *testing.T) {
	site := testSite()
	site.Soil.IrrigationPulseVWC = 0 // drought scenario
	model := NewSoilMoistureModel(site)

	dt := 3600.0
	prev := model.VWC()
	for tm := dt; tm <= 20*86400; tm += dt {
		vwc, err := model.Step(dt, tm)
		if err != nil {
			t.Fatalf("Step(t=%v) failed: %v", tm, err)
		}
		if vwc > prev {
			t.Fatalf("VWC increased from %.4f to %.4f during drought at t=%v", prev, vwc, tm)
		}
		prev = vwc
	}

	// 20 days at 0.2%/h dries well past the floor
	if prev != site.Soil.MinVWC {
		t.Errorf("drought VWC = %.4f, want floor %.1f", prev, site.Soil.MinVWC)
	}
}

func TestSoilMoisture_IrrigationBump(t *testing.T) {
	site := testSite()
	model := NewSoilMoistureModel(site)

	dt := 60.0
	interval := site.Soil.IrrigationInterval.Seconds()
	prev := model.VWC()
	bumped := false
	for tm := dt; tm <= interval+dt; tm += dt {
		vwc, err := model.Step(dt, tm)
		if err != nil {
			t.Fatalf("Step(t=%v) failed: %v", tm, err)
		}
		if vwc > prev {
			if tm < interval {
				t.Fatalf("VWC rose at t=%v, before the first irrigation interval", tm)
			}
			bumped = true
		}
		prev = vwc
	}
	if !bumped {
		t.Error("no irrigation bump observed at the interval crossing")
	}
}

func TestSoilMoisture_WeekHasFourPulses(t *testing.T) {
	site := testSite()
	model := NewSoilMoistureModel(site)

	// One simulated week at hourly steps: ⌊168/36⌋ = 4 bumps
	dt := 3600.0
	prev := model.VWC()
	bumps := 0
	for tm := dt; tm <= 7*86400; tm += dt {
		vwc, err := model.Step(dt, tm)
		if err != nil {
			t.Fatalf("Step(t=%v) failed: %v", tm, err)
		}
		if vwc > prev {
			bumps++
		}
		prev = vwc
	}
	if bumps != 4 {
		t.Errorf("observed %d irrigation bumps over a week, want 4", bumps)
	}
}

func TestSoilMoisture_CoarseStepPulsePolicy(t *testing.T) {
	// A single step spanning two full irrigation intervals: the
	// default fires one pulse, catch-up mode fires both.
	bigStep := 80 * 3600.0

	site := testSite()
	site.Soil.EvaporationPerSecond = 0
	defModel := NewSoilMoistureModel(site)
	got, err := defModel.Step(bigStep, bigStep)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	want := site.Soil.InitialVWC + site.Soil.IrrigationPulseVWC
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("default policy VWC = %.4f, want %.4f (one pulse)", got, want)
	}

	catchSite := testSite()
	catchSite.Soil.EvaporationPerSecond = 0
	catchSite.Soil.IrrigationCatchUp = true
	catchSite.Soil.MaxVWC = 95 // keep both pulses below saturation
	catchModel := NewSoilMoistureModel(catchSite)
	got, err = catchModel.Step(bigStep, bigStep)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	want = catchSite.Soil.InitialVWC + 2*catchSite.Soil.IrrigationPulseVWC
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("catch-up policy VWC = %.4f, want %.4f (two pulses)", got, want)
	}
}

func TestSoilMoisture_SaturationClipsAtMax(t *testing.T) {
	site := testSite()
	site.Soil.EvaporationPerSecond = 0
	site.Soil.MaxVWC = 62 // first pulse overshoots
	model := NewSoilMoistureModel(site)

	interval := site.Soil.IrrigationInterval.Seconds()
	vwc, err := model.Step(interval, interval)
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if vwc != site.Soil.MaxVWC {
		t.Errorf("saturated VWC = %.4f, want clamp at %.1f", vwc, site.Soil.MaxVWC)
	}
}

func TestSoilMoisture_InvalidInputs(t *testing.T) {
	tests := []struct {
		name string
		dt   float64
		t    float64
	}{
		{"zero dt", 0, 60},
		{"negative dt", -1, 60},
		{"nan dt", math.NaN(), 60},
		{"infinite dt", math.Inf(1), 60},
		{"negative t", 60, -60},
		{"nan t", 60, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewSoilMoistureModel(testSite())
			if _, err := model.Step(tt.dt, tt.t); err == nil {
				t.Errorf("Step(dt=%v, t=%v) should have failed", tt.dt, tt.t)
			}
		})
	}
}

func TestSoilMoisture_RejectsNonMonotonicTime(t *testing.T) {
	model := NewSoilMoistureModel(testSite())

	if _, err := model.Step(60, 120); err != nil {
		t.Fatalf("first Step failed: %v", err)
	}
	if _, err := model.Step(60, 60); err == nil {
		t.Error("Step with rewound time should have failed")
	}
	if _, err := model.Step(60, 120); err == nil {
		t.Error("Step with repeated time should have failed")
	}
}
