package rbac

import (
	"errors"
	"testing"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleViewer, PermissionReadRun, true},
		{RoleViewer, PermissionDecideRun, false},
		{RoleReviewer, PermissionDecideRun, true},
		{RoleReviewer, PermissionReplayOutbox, false},
		{RoleAdmin, PermissionReplayOutbox, true},
		{"unknown", PermissionReadRun, false},
	}
	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermission(t *testing.T) {
	err := CheckPermission("bob", RoleViewer, PermissionCancelRun)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.Reviewer != "bob" || denied.Permission != PermissionCancelRun {
		t.Errorf("denied = %+v", denied)
	}
	if err := CheckPermission("bob", RoleAdmin, PermissionCancelRun); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateReviewer(t *testing.T) {
	if err := ValidateReviewer("alice", ""); err != nil {
		t.Errorf("empty payload reviewer should pass: %v", err)
	}
	if err := ValidateReviewer("alice", "alice"); err != nil {
		t.Errorf("matching reviewer should pass: %v", err)
	}
	var mismatch *ReviewerMismatchError
	if err := ValidateReviewer("alice", "mallory"); !errors.As(err, &mismatch) {
		t.Errorf("expected ReviewerMismatchError, got %v", err)
	}
}
