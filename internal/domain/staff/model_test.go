package staff

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
)

func TestRoleFor(t *testing.T) {
	tests := []struct {
		pos     Position
		want    account.Role
		wantErr bool
	}{
		{PositionDentist, account.RoleClinician, false},
		{PositionAssistantDentist, account.RoleClinician, false},
		{PositionAssistant, account.RoleAssistant, false},
		{"receptionist", "", true},
	}
	for _, tt := range tests {
		got, err := RoleFor(tt.pos)
		if (err != nil) != tt.wantErr {
			t.Errorf("RoleFor(%q) error = %v", tt.pos, err)
		}
		if got != tt.want {
			t.Errorf("RoleFor(%q) = %q, want %q", tt.pos, got, tt.want)
		}
	}
}

func TestBaseHandle(t *testing.T) {
	tests := map[string]string{
		"Maria Santos":        "maria.santos",
		"  Maria   de  Leon ": "maria.de.leon",
		"José Rizal":          "josé.rizal",
	}
	for in, want := range tests {
		if got := BaseHandle(in); got != want {
			t.Errorf("BaseHandle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNextHandle(t *testing.T) {
	tests := []struct {
		name  string
		taken []string
		want  string
	}{
		{"free", nil, "ana.cruz"},
		{"base taken", []string{"ana.cruz"}, "ana.cruz1"},
		{"gap keeps counting up", []string{"ana.cruz", "ana.cruz3"}, "ana.cruz4"},
		{"suffix only", []string{"ana.cruz2"}, "ana.cruz3"},
		{"unrelated handles", []string{"ana.cruzado"}, "ana.cruz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextHandle("ana.cruz", tt.taken); got != tt.want {
				t.Errorf("NextHandle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("a", 95)
	if got := truncateRunes(long, 90); len([]rune(got)) != 90 {
		t.Errorf("expected 90 runes, got %d", len([]rune(got)))
	}
	if got := truncateRunes("abc.def", 4); got != "abc" {
		t.Errorf("expected trailing dot trimmed, got %q", got)
	}
}

func TestProfileState(t *testing.T) {
	ref := uuid.New()
	tests := []struct {
		p    Profile
		want string
	}{
		{Profile{}, "no-credentials"},
		{Profile{UserRef: &ref}, "issued-unused"},
		{Profile{UserRef: &ref, IsCodeUsed: true}, "activated"},
	}
	for _, tt := range tests {
		if got := tt.p.State(); got != tt.want {
			t.Errorf("State() = %q, want %q", got, tt.want)
		}
	}
}
