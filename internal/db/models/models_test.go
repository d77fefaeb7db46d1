package models

import (
	"testing"
)

func TestDocuments_ValueAndScan(t *testing.T) {
	var empty Documents
	v, err := empty.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v != "[]" {
		t.Errorf("empty Documents Value() = %v, want []", v)
	}

	var got Documents
	if err := got.Scan([]byte(`[{"filename":"reg.pdf","url":"http://x/reg.pdf","uploadedAt":"2024-01-02T03:04:05Z"}]`)); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(got) != 1 || got[0].Filename != "reg.pdf" {
		t.Errorf("Scan() = %+v", got)
	}
	if got[0].UploadedAt.Year() != 2024 {
		t.Errorf("UploadedAt = %v, want 2024", got[0].UploadedAt)
	}
}

func TestMediaFiles_ScanNullLeavesEmpty(t *testing.T) {
	var m MediaFiles
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("Scan(nil) = %v, want empty", m)
	}
}

func TestMediaFile_ScanRejectsUnknownType(t *testing.T) {
	var f MediaFile
	if err := f.Scan(42); err == nil {
		t.Error("Scan(int) expected error, got nil")
	}
}

func TestMediaFile_Value(t *testing.T) {
	v, err := MediaFile{Filename: "sheet.xlsx", URL: "http://x/sheet.xlsx"}.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}
	if v != `{"filename":"sheet.xlsx","url":"http://x/sheet.xlsx"}` {
		t.Errorf("Value() = %v", v)
	}
}

func TestTrainingEvent_IsOwnedBy(t *testing.T) {
	tr := &TrainingEvent{PartnerID: "org-1"}
	same, other, empty := "org-1", "org-2", ""

	if !tr.IsOwnedBy(&same) {
		t.Error("IsOwnedBy(owner) = false, want true")
	}
	if tr.IsOwnedBy(&other) {
		t.Error("IsOwnedBy(other) = true, want false")
	}
	if tr.IsOwnedBy(&empty) || tr.IsOwnedBy(nil) {
		t.Error("IsOwnedBy(empty/nil) = true, want false")
	}
}

func TestValidators(t *testing.T) {
	if !ValidRole(RoleAdmin) || !ValidRole(RolePartner) || ValidRole("viewer") {
		t.Error("ValidRole mismatch")
	}
}

func TestUser_IsActive(t *testing.T) {
	if !(&User{Status: AccountActive}).IsActive() {
		t.Error("active user reported inactive")
	}
	if (&User{Status: AccountInactive}).IsActive() {
		t.Error("inactive user reported active")
	}
}
