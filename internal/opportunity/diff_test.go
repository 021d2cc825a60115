package opportunity

import (
	"testing"

	"bdpipeline/internal/models"
)

func TestDiffIgnoresDecimalScale(t *testing.T) {
	a := &models.Opportunity{OriginalAmount: d("12000"), MarginPercentage: d("0.13")}
	b := &models.Opportunity{OriginalAmount: d("12000.00"), MarginPercentage: d("0.1300")}
	if changes := Diff(a, b); len(changes) != 0 {
		t.Fatalf("changes=%+v want none", changes)
	}
}

func TestDiffOptionalFields(t *testing.T) {
	pt := "One-time service"
	team := uint64(4)
	a := &models.Opportunity{}
	b := &models.Opportunity{ProjectType: &pt, TeamID: &team}
	changes := Diff(a, b)
	if len(changes) != 2 {
		t.Fatalf("changes=%+v", changes)
	}
	if changes[0].Field != "project_type" || changes[0].Old != nil || changes[0].New != pt {
		t.Fatalf("project type change=%+v", changes[0])
	}
	if changes[1].Field != "team_id" || changes[1].New != uint64(4) {
		t.Fatalf("team change=%+v", changes[1])
	}
	if !NeedsRecalculation(changes) {
		t.Fatalf("project type change should trigger recalculation")
	}
	if NeedsRecalculation(changes[1:]) {
		t.Fatalf("team change alone should not trigger recalculation")
	}
}

func TestPatchClearsOptionalFields(t *testing.T) {
	pt := "One-time service"
	team := uint64(4)
	o := &models.Opportunity{ProjectType: &pt, TeamID: &team}
	empty := ""
	zero := uint64(0)
	if err := (Patch{ProjectType: &empty, TeamID: &zero}).apply(o); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if o.ProjectType != nil || o.TeamID != nil {
		t.Fatalf("project type=%v team=%v want cleared", o.ProjectType, o.TeamID)
	}
}
