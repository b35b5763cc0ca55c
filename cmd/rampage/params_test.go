package main

import (
	"errors"
	"path/filepath"
	"testing"

	"rampage/internal/cue"
	"rampage/internal/flow"
	"rampage/internal/settings"
)

type fakePoints struct{ p cue.Points }

func (f *fakePoints) Points() cue.Points { return f.p }
func (f *fakePoints) SetPoints(p cue.Points) error {
	if err := p.Validate(); err != nil {
		return err
	}
	f.p = p
	return nil
}

type fakeThresholds struct{ th flow.Thresholds }

func (f *fakeThresholds) Thresholds() flow.Thresholds { return f.th }
func (f *fakeThresholds) SetThresholds(th flow.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	f.th = th
	return nil
}

func newTestParams() (*ParamTable, *fakePoints, []*fakeThresholds) {
	pts := &fakePoints{p: cue.DefaultPoints()}
	ths := []*fakeThresholds{
		{th: flow.DefaultThresholds()},
		{th: flow.DefaultThresholds()},
	}
	return NewParamTable(pts, []thresholdsTarget{ths[0], ths[1]}), pts, ths
}

func TestParamTable_KeysAndValues(t *testing.T) {
	tbl, _, _ := newTestParams()

	if got := len(tbl.Keys()); got != 8 {
		t.Fatalf("keys = %v, want 8", tbl.Keys())
	}
	vals := tbl.Values()
	if vals[keyLargeDamagePoints] != 10 || vals[keyHeavyChaosPoints] != 1500 || vals[keyMediumTriggerSlope] != 3 {
		t.Fatalf("values = %v", vals)
	}
	if _, err := tbl.Get("sampler.nope"); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("Get unknown err = %v", err)
	}
}

func TestParamTable_SetPoints(t *testing.T) {
	tbl, pts, _ := newTestParams()

	if err := tbl.Set(keySmallDamagePoints, 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if pts.p.SmallDamage != 7 {
		t.Fatalf("small damage = %d, want 7", pts.p.SmallDamage)
	}

	for _, tc := range []struct {
		key string
		v   float64
	}{
		{keySmallDamagePoints, 0},
		{keySmallDamagePoints, 21},
		{keySmallDamagePoints, 2.5},
		{keyHeavyChaosPoints, 10001},
	} {
		if err := tbl.Set(tc.key, tc.v); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("Set(%s, %v) err = %v, want ErrOutOfRange", tc.key, tc.v, err)
		}
	}
	if err := tbl.Set("sampler.nope", 1); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("unknown key err = %v", err)
	}
}

func TestParamTable_SlopeAppliesToEveryTrackerRounded(t *testing.T) {
	tbl, _, ths := newTestParams()

	if err := tbl.Set(keyLargeTriggerSlope, 6.26); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for i, th := range ths {
		if th.th.Large != 6.3 {
			t.Fatalf("tracker %d large = %v, want 6.3", i, th.th.Large)
		}
	}
	if err := tbl.Set(keySmallTriggerSlope, 0.05); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("slope below range err = %v", err)
	}
}

func TestParamTable_NoTrackersReadsDefaults(t *testing.T) {
	tbl := NewParamTable(&fakePoints{p: cue.DefaultPoints()}, nil)
	v, err := tbl.Get(keySmallTriggerSlope)
	if err != nil || v != flow.DefaultThresholds().Small {
		t.Fatalf("Get = %v, %v", v, err)
	}
}

func TestParamTable_SettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	tbl, _, _ := newTestParams()
	if err := tbl.Set(keyMildChaosPoints, 300); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Set(keyMediumTriggerSlope, 3.5); err != nil {
		t.Fatal(err)
	}

	store, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(keyLegacyTriggerSlope, 1.5); err != nil {
		t.Fatal(err)
	}
	if err := tbl.SaveTo(store); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if store.Has(keyLegacyTriggerSlope) {
		t.Fatalf("legacy key should be removed on save")
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := settings.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	fresh, pts, ths := newTestParams()
	if errs := fresh.LoadFrom(reloaded); len(errs) != 0 {
		t.Fatalf("LoadFrom errors: %v", errs)
	}
	if pts.p.MildChaos != 300 || ths[1].th.Medium != 3.5 {
		t.Fatalf("loaded mild=%d medium=%v", pts.p.MildChaos, ths[1].th.Medium)
	}
}

func TestParamTable_LoadFromLegacyAndBadValues(t *testing.T) {
	store, err := settings.Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Set(keyLegacyTriggerSlope, 2.7)
	_ = store.Set(keyLargeDamagePoints, 99)
	_ = store.Set(keySmallDamagePoints, 4)

	tbl, pts, ths := newTestParams()
	errs := tbl.LoadFrom(store)

	if len(errs) != 1 || !errors.Is(errs[0], ErrOutOfRange) {
		t.Fatalf("errs = %v, want one out-of-range", errs)
	}
	if ths[0].th.Small != 2.7 {
		t.Fatalf("legacy slope not applied: %v", ths[0].th.Small)
	}
	if pts.p.SmallDamage != 4 || pts.p.LargeDamage != 10 {
		t.Fatalf("points = %+v", pts.p)
	}
}
