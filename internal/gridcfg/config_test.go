package gridcfg

import (
	"testing"

	"arbitrage/internal/dec"
)

func cfg() *GridConfig {
	return &GridConfig{
		Symbol:                 "BTC-USDC-PERP",
		InitialSpreadThreshold: dec.FromString("0.5"),
		GridStep:               dec.FromString("0.3"),
		MaxSegments:            5,
		T0CloseRatio:           dec.FromString("0.4"),
	}
}

func TestOpenThreshold_StepsLinearly(t *testing.T) {
	g := cfg()
	want := []string{"0.5", "0.8", "1.1", "1.4", "1.7"}
	for i, w := range want {
		got := g.OpenThreshold(i + 1)
		if !got.Equal(dec.FromString(w)) {
			t.Fatalf("OpenThreshold(%d) = %s, want %s", i+1, got, w)
		}
	}
}

func TestOpenThreshold_ClampsBelowOne(t *testing.T) {
	g := cfg()
	if !g.OpenThreshold(0).Equal(g.OpenThreshold(1)) {
		t.Fatalf("expected OpenThreshold(0) to clamp to level 1")
	}
}

func TestCloseThreshold_T0UsesRatioOfT1(t *testing.T) {
	g := cfg()
	got := g.CloseThreshold(1)
	want := dec.FromString("0.2") // 0.5 * 0.4
	if !got.Equal(want) {
		t.Fatalf("CloseThreshold(1) = %s, want %s", got, want)
	}
}

func TestCloseThreshold_HigherLevelsEqualPriorOpen(t *testing.T) {
	g := cfg()
	for i := 2; i <= g.MaxSegments; i++ {
		got := g.CloseThreshold(i)
		want := g.OpenThreshold(i - 1)
		if !got.Equal(want) {
			t.Fatalf("CloseThreshold(%d) = %s, want %s", i, got, want)
		}
	}
}

func TestValidate_RejectsNonPositiveGridStep(t *testing.T) {
	g := cfg()
	g.GridStep = dec.Zero
	if err := g.Validate(); err == nil {
		t.Fatalf("expected error for zero grid step")
	}
}

func TestValidate_RejectsT0RatioOutOfRange(t *testing.T) {
	g := cfg()
	g.T0CloseRatio = dec.FromString("1")
	if err := g.Validate(); err == nil {
		t.Fatalf("expected error for t0_close_ratio >= 1")
	}

	g2 := cfg()
	g2.T0CloseRatio = dec.Zero
	if err := g2.Validate(); err == nil {
		t.Fatalf("expected error for t0_close_ratio == 0")
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	g := cfg()
	if err := g.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_RejectsZeroMaxSegments(t *testing.T) {
	g := cfg()
	g.MaxSegments = 0
	if err := g.Validate(); err == nil {
		t.Fatalf("expected error for max_segments < 1")
	}
}
