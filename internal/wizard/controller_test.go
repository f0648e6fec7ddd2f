package wizard

import (
	"encoding/json"
	"errors"
	"testing"

	"consultor-integral/internal/recommend"
)

func intPtr(v int) *int { return &v }

func completeInputs() []StepInput {
	return []StepInput{
		{Sector: recommend.SectorHealth, Size: recommend.SizeLarge},
		{Women: intPtr(150), Men: intPtr(50), Days: intPtr(30), Hours: intPtr(12)},
		{PublicTypes: []string{PublicOperational}},
		{Products: []string{"Papel Higiénico"}, Segment: recommend.SegmentCriticalHygiene},
	}
}

func fillController(t *testing.T) *Controller {
	t.Helper()
	c := NewController()
	for i, input := range completeInputs() {
		if err := c.Submit(input); err != nil {
			t.Fatalf("submit step %d: %v", i, err)
		}
	}
	return c
}

func TestControllerHappyPath(t *testing.T) {
	c := fillController(t)
	if !c.Ready() {
		t.Fatalf("expected profile ready after last step")
	}
	snap := c.Snapshot()
	if snap.StepID != StepProductSelection || snap.Phase != PhaseCollecting {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	profile, err := c.BeginResolving()
	if err != nil {
		t.Fatalf("begin resolving: %v", err)
	}
	if profile.EmployeeCount() != 200 {
		t.Fatalf("expected 200 employees got %d", profile.EmployeeCount())
	}
	if level := profile.TrafficLevel(); level != recommend.TrafficHigh {
		t.Fatalf("expected high traffic got %s", level)
	}
	if profile.Segment != recommend.SegmentCriticalHygiene {
		t.Fatalf("segment must stay as chosen, got %q", profile.Segment)
	}

	if _, err := c.BeginResolving(); !errors.Is(err, ErrCalculationInFlight) {
		t.Fatalf("expected in-flight error got %v", err)
	}
	if err := c.Restart(); !errors.Is(err, ErrCalculationInFlight) {
		t.Fatalf("expected restart to be blocked got %v", err)
	}

	c.CompleteResolving(recommend.ConsumptionResult{
		"Papel Higiénico": {Monthly: 42, Applicable: true, ReferenceUsed: "1234"},
	}, nil)
	if c.Phase() != PhaseDisplaying {
		t.Fatalf("expected displaying got %s", c.Phase())
	}
	if got := c.Consumption()["Papel Higiénico"].Monthly; got != 42 {
		t.Fatalf("expected consumption 42 got %v", got)
	}
}

func TestControllerFailedCalculationStillDisplays(t *testing.T) {
	c := fillController(t)
	if _, err := c.BeginResolving(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.CompleteResolving(recommend.ConsumptionResult{"x": {}}, errors.New("backend down"))
	snap := c.Snapshot()
	if snap.Phase != PhaseDisplaying {
		t.Fatalf("expected displaying got %s", snap.Phase)
	}
	if len(snap.Consumption) != 0 {
		t.Fatalf("expected empty consumption, got %v", snap.Consumption)
	}
	if snap.CalculationError != "backend down" {
		t.Fatalf("unexpected calculation error %q", snap.CalculationError)
	}
}

func TestControllerRejectsIncompleteProfile(t *testing.T) {
	c := NewController()
	if _, err := c.BeginResolving(); !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("expected incomplete error got %v", err)
	}
	if err := c.Submit(completeInputs()[0]); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := c.BeginResolving(); !errors.Is(err, ErrProfileIncomplete) {
		t.Fatalf("expected incomplete error got %v", err)
	}
}

func TestControllerValidationLeavesStateUntouched(t *testing.T) {
	c := NewController()
	for _, input := range completeInputs()[:2] {
		if err := c.Submit(input); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	before := c.Snapshot()

	err := c.Submit(StepInput{
		PublicTypes: []string{PublicAdministrative, PublicOperational},
		Proportions: &Proportions{Administrative: 60, Operational: 30},
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error got %v", err)
	}
	if verr.Message != "Las proporciones deben sumar exactamente 100%" {
		t.Fatalf("unexpected message %q", verr.Message)
	}

	after := c.Snapshot()
	if after.Step != before.Step || len(after.Profile.PublicTypes) != 0 {
		t.Fatalf("state changed on rejected step: %+v", after)
	}
}

func TestControllerBackAndRestart(t *testing.T) {
	c := NewController()
	if err := c.Back(); err != nil {
		t.Fatalf("back at first step: %v", err)
	}
	if c.Snapshot().Step != 0 {
		t.Fatalf("expected to stay at step 0")
	}

	c = fillController(t)
	if _, err := c.BeginResolving(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.CompleteResolving(recommend.ConsumptionResult{}, nil)
	if err := c.Back(); err != nil {
		t.Fatalf("back from results: %v", err)
	}
	snap := c.Snapshot()
	if snap.Phase != PhaseCollecting || snap.StepID != StepProductSelection {
		t.Fatalf("expected last step, got %+v", snap)
	}
	if snap.Profile.Sector == "" {
		t.Fatalf("profile should survive going back")
	}

	if err := c.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	snap = c.Snapshot()
	if snap.Step != 0 || snap.Phase != PhaseCollecting || snap.Ready {
		t.Fatalf("unexpected state after restart %+v", snap)
	}
	if snap.Profile.Sector != "" || len(snap.Profile.Products) != 0 {
		t.Fatalf("profile not cleared: %+v", snap.Profile)
	}
}

func TestControllerSubmitOutsideCollecting(t *testing.T) {
	c := fillController(t)
	if _, err := c.BeginResolving(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.Submit(completeInputs()[3]); !errors.Is(err, ErrNotCollecting) {
		t.Fatalf("expected not collecting got %v", err)
	}
}

func TestControllerSelectReference(t *testing.T) {
	c := fillController(t)
	if err := c.SelectReference("Jabones y Gel", "1"); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected unknown product got %v", err)
	}
	if err := c.SelectReference("Papel Higiénico", "9000"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got := c.Profile().SelectedReferences["Papel Higiénico"]; got != "9000" {
		t.Fatalf("expected 9000 got %q", got)
	}
	if err := c.UpdateConsumption("Papel Higiénico", recommend.Consumption{Monthly: 3, Applicable: true}); err != nil {
		t.Fatalf("update consumption: %v", err)
	}
	if got := c.Consumption()["Papel Higiénico"].Monthly; got != 3 {
		t.Fatalf("expected 3 got %v", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := fillController(t)
	if _, err := c.BeginResolving(); err != nil {
		t.Fatalf("begin: %v", err)
	}

	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored := Restore(snap)
	if restored.Phase() != PhaseCollecting || !restored.Ready() {
		t.Fatalf("interrupted calculation should restore as ready to calculate")
	}
	if _, err := restored.BeginResolving(); err != nil {
		t.Fatalf("begin after restore: %v", err)
	}
	if restored.Profile().Sector != recommend.SectorHealth {
		t.Fatalf("profile lost in restore")
	}
}

func TestControllerReplaceReferences(t *testing.T) {
	c := fillController(t)
	if err := c.SelectReference("Papel Higiénico", "9000"); err != nil {
		t.Fatalf("select: %v", err)
	}
	c.ReplaceReferences(map[string]string{
		"Papel Higiénico": "1234 - Premium Roll",
		"Jabones y Gel":   "7001",
	})
	refs := c.Profile().SelectedReferences
	if len(refs) != 1 || refs["Papel Higiénico"] != "1234 - Premium Roll" {
		t.Fatalf("unexpected references %v", refs)
	}

	c.ReplaceReferences(nil)
	if refs := c.Profile().SelectedReferences; len(refs) != 0 {
		t.Fatalf("expected references cleared, got %v", refs)
	}
}

func TestControllerFailConsumption(t *testing.T) {
	c := fillController(t)
	if _, err := c.BeginResolving(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.CompleteResolving(recommend.ConsumptionResult{
		"Papel Higiénico": {Monthly: 12.5, Applicable: true, ReferenceUsed: "30218"},
	}, nil)

	if err := c.FailConsumption("Papel Higiénico", "1111", errors.New("referencia inválida")); err != nil {
		t.Fatalf("fail consumption: %v", err)
	}
	if ref := c.Profile().SelectedReferences["Papel Higiénico"]; ref != "1111" {
		t.Fatalf("expected failed reference to stay chosen, got %q", ref)
	}
	if _, ok := c.Consumption()["Papel Higiénico"]; ok {
		t.Fatalf("stale consumption kept after a failed recalculation")
	}
	if msg := c.Failures()["Papel Higiénico"]; msg != "referencia inválida" {
		t.Fatalf("unexpected failure message %q", msg)
	}

	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored := Restore(snap); restored.Failures()["Papel Higiénico"] == "" {
		t.Fatalf("failure lost in restore")
	}

	if err := c.UpdateConsumption("Papel Higiénico", recommend.Consumption{Monthly: 4, Applicable: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(c.Failures()) != 0 {
		t.Fatalf("successful recalculation must clear the failure: %v", c.Failures())
	}

	if err := c.FailConsumption("Toallas de Manos", "1", nil); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct got %v", err)
	}
}

func TestRestorePrefersStepID(t *testing.T) {
	restored := Restore(Snapshot{Phase: PhaseCollecting, Step: 0, StepID: StepPublicType})
	if got := restored.Snapshot().StepID; got != StepPublicType {
		t.Fatalf("expected %s got %s", StepPublicType, got)
	}
	restored = Restore(Snapshot{Phase: PhaseCollecting, Step: 1, StepID: "retired-step"})
	if got := restored.Snapshot().Step; got != 1 {
		t.Fatalf("unknown step id should fall back to the index, got %d", got)
	}
}
