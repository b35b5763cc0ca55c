package main

import (
	"fmt"

	"rampage/internal/cue"
	"rampage/internal/flow"
)

// Installation ties the per-camera trackers, the cue controller and the live
// parameters together behind Backend.
type Installation struct {
	controller *cue.Controller
	trackers   []*flow.Tracker
	params     *ParamTable
}

// NewInstallation builds the live parameter table over controller and
// trackers. Trackers should report into controller.
func NewInstallation(controller *cue.Controller, trackers []*flow.Tracker) *Installation {
	targets := make([]thresholdsTarget, len(trackers))
	for i, t := range trackers {
		targets[i] = t
	}
	return &Installation{
		controller: controller,
		trackers:   trackers,
		params:     NewParamTable(controller, targets),
	}
}

// Params exposes the parameter table for loading and saving settings.
func (in *Installation) Params() *ParamTable { return in.params }

func (in *Installation) tracker(camera int) (*flow.Tracker, error) {
	if camera < 0 || camera >= len(in.trackers) {
		return nil, fmt.Errorf("unknown camera %d (have %d)", camera, len(in.trackers))
	}
	return in.trackers[camera], nil
}

func (in *Installation) ObserveFlow(camera int, value float64) error {
	t, err := in.tracker(camera)
	if err != nil {
		return err
	}
	t.Observe(value)
	return nil
}

// SetTrackerEnabled also clears the camera's last reported tier when
// disabling, so a stale LARGE does not keep scoring.
func (in *Installation) SetTrackerEnabled(camera int, enabled bool) error {
	t, err := in.tracker(camera)
	if err != nil {
		return err
	}
	t.SetEnabled(enabled)
	if !enabled {
		in.controller.ReportSeverity(camera, flow.SeverityNone)
	}
	return nil
}

func (in *Installation) SetPhase(p cue.Phase) { in.controller.SetPhase(p) }
func (in *Installation) SetMonster(m cue.Monster) { in.controller.SetMonster(m) }
func (in *Installation) TriggerIntro() bool { return in.controller.TriggerMonsterIntro() }
func (in *Installation) TriggerManual(m cue.ManualCue) bool { return in.controller.TriggerManual(m) }
func (in *Installation) Tick() { in.controller.Tick() }

func (in *Installation) SetParam(key string, value float64) error {
	return in.params.Set(key, value)
}

// Snapshot merges controller and tracker state.
func (in *Installation) Snapshot() StateSnapshot {
	cs := in.controller.Snapshot()

	cams := make([]CameraState, len(in.trackers))
	for i, t := range in.trackers {
		ts := t.Snapshot()
		tier := flow.SeverityNone
		if i < len(cs.Cameras) {
			tier = cs.Cameras[i]
		}
		cams[i] = CameraState{
			Camera:   i,
			Enabled:  ts.Enabled,
			WarmedUp: ts.WarmedUp,
			Tier:     tier,
			Rise:     ts.Rise,
		}
	}

	return StateSnapshot{
		Phase:        cs.Phase,
		Monster:      cs.Monster,
		Score:        cs.Score,
		RecentPoints: cs.RecentPoints,
		Chaos:        cs.Chaos,
		IntroPlayed:  cs.IntroPlayed,
		Active:       cs.Active,
		Cameras:      cams,
		Params:       in.params.Values(),
		Counters:     cs.Counters,
	}
}
