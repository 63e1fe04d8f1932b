package auth

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		username string
		want     bool
	}{
		{"admin", true},
		{"edge.fems-01", true},
		{"under_score", true},
		{"", false},
		{"has space", false},
		{"slash/name", false},
		{string(make([]byte, 65)), false},
	}
	for _, tt := range tests {
		if got := IsValidUsername(tt.username); got != tt.want {
			t.Errorf("IsValidUsername(%q) = %v, want %v", tt.username, got, tt.want)
		}
	}
}

func TestRole_Ordering(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleInstaller) || !RoleInstaller.AtLeast(RoleOwner) || !RoleOwner.AtLeast(RoleGuest) {
		t.Error("roles should be ordered guest < owner < installer < admin")
	}
	if RoleGuest.AtLeast(RoleOwner) {
		t.Error("guest should not satisfy owner")
	}
	if !RoleOwner.AtLeast(RoleOwner) {
		t.Error("a role should satisfy itself")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"guest", RoleGuest, false},
		{"Owner", RoleOwner, false},
		{"INSTALLER", RoleInstaller, false},
		{"admin", RoleAdmin, false},
		{"root", RoleGuest, true},
		{"", RoleGuest, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRole) {
				t.Errorf("error = %v, want ErrInvalidRole", err)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRole_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleInstaller})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"role":"installer"}` {
		t.Errorf("Marshal() = %s", b)
	}

	var out struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"owner"}`), &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if out.Role != RoleOwner {
		t.Errorf("Role = %v, want owner", out.Role)
	}

	if _, err := Role(42).MarshalText(); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("MarshalText(42) error = %v, want ErrInvalidRole", err)
	}
	if Role(42).String() != "role(42)" {
		t.Errorf("String() = %q", Role(42).String())
	}
}

func TestSession_IsEdge(t *testing.T) {
	var nilSession *Session
	if nilSession.IsEdge() {
		t.Error("nil session should not be an edge")
	}
	if (&Session{}).IsEdge() {
		t.Error("session without EdgeID should not be an edge")
	}
	if !(&Session{EdgeID: "edge0"}).IsEdge() {
		t.Error("session with EdgeID should be an edge")
	}
}
