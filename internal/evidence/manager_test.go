package evidence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/actor"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/audit"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/database"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/detection"
	"github.com/zing254/KENYA-OVERWATCH-SYSTEM/internal/risk"
)

func sampleEvents() []detection.Event {
	return []detection.Event{
		{
			CameraID:    "cam_1",
			Timestamp:   time.Date(2026, 3, 10, 22, 15, 0, 0, time.UTC),
			Type:        detection.TypePerson,
			Confidence:  0.92,
			BoundingBox: detection.BoundingBox{X: 100, Y: 100, Width: 40, Height: 90},
			FrameHash:   "abc123",
		},
	}
}

func assessmentWithLevel(level risk.Level) risk.Assessment {
	return risk.Assessment{
		Score:             0.65,
		Level:             level,
		RecommendedAction: risk.ActionForLevel(level),
		Confidence:        0.85,
		Timestamp:         time.Date(2026, 3, 10, 22, 15, 0, 0, time.UTC),
	}
}

func TestCreatePackageHashRoundTrip(t *testing.T) {
	m := NewManager(nil, nil)

	pkg, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	if pkg.Status != StatusCreated {
		t.Errorf("status = %v, want created", pkg.Status)
	}
	if pkg.Hash == "" {
		t.Fatal("hash not set")
	}

	if err := VerifyPackage(pkg); err != nil {
		t.Errorf("fresh package failed verification: %v", err)
	}
}

func TestCloneKeepsEmptyChainVerifiable(t *testing.T) {
	m := NewManager(nil, nil)

	created, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	if created.ChainOfCustody == nil || len(created.ChainOfCustody) != 0 {
		t.Fatalf("fresh chain of custody = %#v, want empty non-nil", created.ChainOfCustody)
	}

	// The copy handed out by Get serializes identically to the stored
	// original, so the hash still matches.
	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ChainOfCustody == nil {
		t.Error("copy turned the empty chain of custody into nil")
	}
	if err := VerifyPackage(got); err != nil {
		t.Errorf("package copy failed verification: %v", err)
	}
}

func TestDefaultCalibrationsStamped(t *testing.T) {
	m := NewManager(nil, nil)

	pkg, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}

	cal, ok := pkg.Metadata["camera_calibrations"].(map[string]interface{})
	if !ok {
		t.Fatalf("camera_calibrations missing from metadata: %#v", pkg.Metadata)
	}
	if cal["lens_distortion"] != "calibrated" {
		t.Errorf("lens_distortion = %v", cal["lens_distortion"])
	}

	m.SetCalibrations(map[string]interface{}{"lens_distortion": "uncalibrated"})
	pkg2, err := m.CreatePackage("inc-2", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	cal2, _ := pkg2.Metadata["camera_calibrations"].(map[string]interface{})
	if cal2["lens_distortion"] != "uncalibrated" {
		t.Errorf("SetCalibrations not reflected: %v", cal2)
	}
}

func TestTamperDetection(t *testing.T) {
	m := NewManager(nil, nil)
	pkg, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}

	pkg.ReviewNotes = "altered outside the manager"
	if err := VerifyPackage(pkg); !errors.Is(err, ErrTamperSuspected) {
		t.Errorf("VerifyPackage = %v, want ErrTamperSuspected", err)
	}
}

func TestRetentionByRiskLevel(t *testing.T) {
	m := NewManager(nil, nil)

	high, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	wantHigh := time.Now().UTC().Add(RetentionOffence)
	if d := high.RetentionUntil.Sub(wantHigh); d > time.Second || d < -time.Second {
		t.Errorf("high-risk retention off by %v", d)
	}

	low, err := m.CreatePackage("inc-2", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	wantLow := time.Now().UTC().Add(RetentionNonOffence)
	if d := low.RetentionUntil.Sub(wantLow); d > time.Second || d < -time.Second {
		t.Errorf("low-risk retention off by %v", d)
	}
}

func TestReviewRehashesPackage(t *testing.T) {
	m := NewManager(nil, nil)
	pkg, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	originalHash := pkg.Hash

	if !m.Review(pkg.ID, "supervisor_2", DecisionApprove, "verified against footage") {
		t.Fatal("Review returned false")
	}

	reviewed, err := m.Get(pkg.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reviewed.Status != StatusApproved {
		t.Errorf("status = %v, want approved", reviewed.Status)
	}
	if reviewed.ReviewerID != "supervisor_2" {
		t.Errorf("reviewer = %q", reviewed.ReviewerID)
	}
	if reviewed.Hash == originalHash {
		t.Error("hash unchanged after review; must cover post-review state")
	}
	if err := VerifyPackage(reviewed); err != nil {
		t.Errorf("reviewed package failed verification: %v", err)
	}
	if len(reviewed.ChainOfCustody) != 1 {
		t.Errorf("chain of custody length = %d, want 1", len(reviewed.ChainOfCustody))
	}
}

func TestReviewPreconditions(t *testing.T) {
	m := NewManager(nil, nil)

	if m.Review("missing", "r", DecisionApprove, "") {
		t.Error("Review of unknown id should fail")
	}

	pkg, _ := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))
	if !m.Review(pkg.ID, "r1", DecisionReject, "poor quality") {
		t.Fatal("first review should succeed")
	}
	if m.Review(pkg.ID, "r2", DecisionApprove, "") {
		t.Error("second review of decided package should fail")
	}
}

func TestAppealExtendsRetention(t *testing.T) {
	m := NewManager(nil, nil)
	pkg, err := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	// Offence retention to start with.
	if pkg.RetentionUntil.Before(time.Now().Add(364 * 24 * time.Hour)) {
		t.Fatalf("precondition: expected 365d retention, got %v", pkg.RetentionUntil)
	}

	if !m.SubmitAppeal(pkg.ID, "mistaken identity") {
		t.Fatal("SubmitAppeal returned false")
	}

	appealed, _ := m.Get(pkg.ID)
	if appealed.Status != StatusAppealed {
		t.Errorf("status = %v, want appealed", appealed.Status)
	}
	want := time.Now().UTC().Add(RetentionAppeal)
	if d := appealed.RetentionUntil.Sub(want); d > time.Second || d < -time.Second {
		t.Errorf("appeal retention off by %v", d)
	}
	if appealed.AppealedAt == nil {
		t.Error("AppealedAt not set")
	}
	if err := VerifyPackage(appealed); err != nil {
		t.Errorf("appealed package failed verification: %v", err)
	}
}

func TestAppealNeverShortensRetention(t *testing.T) {
	m := NewManager(nil, nil)
	pkg, _ := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))

	// Force an already-far-future retention, then appeal.
	m.mu.Lock()
	far := time.Now().UTC().Add(20 * 365 * 24 * time.Hour)
	m.packages[pkg.ID].RetentionUntil = far
	m.rehash(m.packages[pkg.ID])
	m.mu.Unlock()

	if !m.SubmitAppeal(pkg.ID, "late appeal") {
		t.Fatal("SubmitAppeal returned false")
	}
	appealed, _ := m.Get(pkg.ID)
	if appealed.RetentionUntil.Before(far) {
		t.Errorf("retention shortened: %v < %v", appealed.RetentionUntil, far)
	}
}

func TestSubmitAppealUnknownID(t *testing.T) {
	m := NewManager(nil, nil)
	if m.SubmitAppeal("missing", "reason") {
		t.Error("SubmitAppeal of unknown id should fail")
	}
}

func TestVerifyUnknownID(t *testing.T) {
	m := NewManager(nil, nil)
	if err := m.Verify("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Verify = %v, want ErrNotFound", err)
	}
}

func TestArchiveExpired(t *testing.T) {
	m := NewManager(nil, nil)
	pkg, _ := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))

	// Nothing expired yet.
	if n := m.ArchiveExpired(); n != 0 {
		t.Errorf("archived %d packages, want 0", n)
	}

	// Move the clock past the retention deadline.
	m.now = func() time.Time { return time.Now().UTC().Add(RetentionNonOffence + time.Hour) }
	if n := m.ArchiveExpired(); n != 1 {
		t.Fatalf("archived %d packages, want 1", n)
	}

	archived, _ := m.Get(pkg.ID)
	if archived.Status != StatusArchived {
		t.Errorf("status = %v, want archived", archived.Status)
	}
	if err := VerifyPackage(archived); err != nil {
		t.Errorf("archived package failed verification: %v", err)
	}

	// Idempotent.
	if n := m.ArchiveExpired(); n != 0 {
		t.Errorf("second sweep archived %d, want 0", n)
	}
}

func TestAuditTrail(t *testing.T) {
	log := audit.NewLog(nil)
	m := NewManager(nil, log)

	pkg, _ := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	m.Review(pkg.ID, "supervisor_2", DecisionApprove, "ok")
	m.SubmitAppeal(pkg.ID, "contested")

	entries := log.EntriesFor(pkg.ID)
	if len(entries) != 3 {
		t.Fatalf("got %d audit entries, want 3", len(entries))
	}
	wantTypes := []string{"evidence_created", "evidence_reviewed", "evidence_appealed"}
	for i, want := range wantTypes {
		if entries[i].EventType != want {
			t.Errorf("entry %d = %q, want %q", i, entries[i].EventType, want)
		}
	}
}

func TestGateDeniesViewer(t *testing.T) {
	m := NewManager(nil, nil)
	gate := NewGate(m)
	pkg, _ := m.CreatePackage("inc-1", sampleEvents(), assessmentWithLevel(risk.LevelLow))

	viewer := actor.Actor{ID: "v1", Role: actor.RoleViewer}
	ok, err := gate.Review(viewer, pkg.ID, DecisionApprove, "")
	if ok || !errors.Is(err, actor.ErrNotPermitted) {
		t.Errorf("gate should deny viewer: ok=%v err=%v", ok, err)
	}

	operator := actor.Actor{ID: "op1", Role: actor.RoleOperator}
	ok, err = gate.Review(operator, pkg.ID, DecisionApprove, "checked")
	if !ok || err != nil {
		t.Errorf("gate should allow operator review: ok=%v err=%v", ok, err)
	}
}

func TestStorePersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.Open(&database.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := database.NewMigrator(db).Run(context.Background()); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	store := NewStore(db)
	m := NewManager(store, nil)

	pkg, err := m.CreatePackage("inc-9", sampleEvents(), assessmentWithLevel(risk.LevelHigh))
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	m.Review(pkg.ID, "supervisor_2", DecisionApprove, "ok")

	loaded, err := store.Load(context.Background(), pkg.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Status != StatusApproved {
		t.Errorf("loaded status = %v, want approved", loaded.Status)
	}
	if err := VerifyPackage(loaded); err != nil {
		t.Errorf("loaded package failed verification: %v", err)
	}

	all, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("LoadAll returned %d packages, want 1", len(all))
	}
}
