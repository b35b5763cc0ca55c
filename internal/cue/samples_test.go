package cue

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
)

// writeLibrary creates one sample per category under a temp dir.
func writeLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, cat := range Categories() {
		catDir := filepath.Join(dir, cat.String())
		if err := os.MkdirAll(catDir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(catDir, "a.wav"), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestLoadSamples_ReadsEveryCategory(t *testing.T) {
	dir := writeLibrary(t)
	screams := filepath.Join(dir, CategoryScream.String())
	for _, name := range []string{"c.MP3", "b.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(screams, name), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(screams, "nested.wav"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	store, err := LoadSamples(dir)
	if err != nil {
		t.Fatalf("LoadSamples: %v", err)
	}

	got := store[CategoryScream]
	want := []string{"a.wav", "b.wav", "c.MP3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d screams, got %+v", len(want), got)
	}
	for i, name := range want {
		if got[i].Name != name || got[i].Category != CategoryScream {
			t.Fatalf("sample %d = %+v, want %s", i, got[i], name)
		}
		if got[i].Path != filepath.Join(screams, name) {
			t.Fatalf("sample %d path = %s", i, got[i].Path)
		}
	}
	if n := len(store.All()); n != int(numCategories)+2 {
		t.Fatalf("All() returned %d samples", n)
	}
}

func TestLoadSamples_MissingCategory(t *testing.T) {
	dir := writeLibrary(t)
	if err := os.RemoveAll(filepath.Join(dir, CategoryCrumble.String())); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := LoadSamples(dir)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Category != CategoryCrumble {
		t.Fatalf("expected crumble ConfigError, got %v", err)
	}
	if !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
}

func TestLoadSamples_EmptyCategory(t *testing.T) {
	dir := writeLibrary(t)
	heavy := filepath.Join(dir, CategoryHeavyChaos.String())
	if err := os.Remove(filepath.Join(heavy, "a.wav")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(filepath.Join(heavy, "readme.txt"), nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := LoadSamples(dir)
	if !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestToGain_Bands(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	fixed := map[Volume]float64{VolumeAmbient: 0.3, VolumeIntro: 0.7, VolumeFull: 1.0}
	for v, want := range fixed {
		if got := toGain(v, r); got != want {
			t.Fatalf("%s gain = %v, want %v", v, got, want)
		}
	}

	bands := map[Volume][2]float64{
		VolumeEffectLow:    {0.2, 0.4},
		VolumeEffectMedium: {0.4, 0.7},
		VolumeEffectHigh:   {0.7, 1.0},
	}
	for v, band := range bands {
		for i := 0; i < 1000; i++ {
			if g := toGain(v, r); g < band[0] || g >= band[1] {
				t.Fatalf("%s gain %v outside [%v, %v)", v, g, band[0], band[1])
			}
		}
	}
}

func TestParseEnums(t *testing.T) {
	if p, err := ParsePhase("Reconstruct"); err != nil || p != PhaseReconstructing {
		t.Fatalf("ParsePhase(Reconstruct) = %v, %v", p, err)
	}
	if _, err := ParsePhase("intermission"); err == nil {
		t.Fatalf("expected unknown phase error")
	}
	if m, err := ParseMonster("robot"); err != nil || m != MonsterRobot {
		t.Fatalf("ParseMonster(robot) = %v, %v", m, err)
	}
	if c, err := ParseManualCue("large-damage"); err != nil || c != ManualLargeDamage {
		t.Fatalf("ParseManualCue(large-damage) = %v, %v", c, err)
	}
	for _, cat := range Categories() {
		got, err := ParseCategory(cat.String())
		if err != nil || got != cat {
			t.Fatalf("category %s did not round-trip: %v, %v", cat, got, err)
		}
	}
	for _, m := range []Monster{MonsterRobot, MonsterLizard, MonsterOther} {
		if m.introCategory() == CategoryCity {
			t.Fatalf("monster %s has no intro", m)
		}
	}
}
