package permission

import (
	"testing"

	"github.com/ashureev/shsh-chat/internal/domain"
)

func TestAllowed(t *testing.T) {
	all := domain.Permissions{domain.PermRead, domain.PermWrite, domain.PermDelete}

	tests := []struct {
		name  string
		op    domain.Operation
		perms domain.Permissions
		want  bool
	}{
		{"write denied with read", domain.OpWriteFile, domain.Permissions{domain.PermRead}, false},
		{"write allowed with write", domain.OpWriteFile, domain.Permissions{domain.PermWrite}, true},
		{"unknown op denied with everything", "unknown-op", all, false},
		{"empty op denied", "", all, false},
		{"read needs read", domain.OpReadFile, domain.Permissions{domain.PermRead}, true},
		{"list needs read", domain.OpListFiles, domain.Permissions{domain.PermWrite}, false},
		{"create-dir needs write", domain.OpCreateDir, domain.Permissions{domain.PermWrite}, true},
		{"edit needs write", domain.OpEditFile, domain.Permissions{domain.PermRead, domain.PermDelete}, false},
		{"delete-file needs delete", domain.OpDeleteFile, domain.Permissions{domain.PermDelete}, true},
		{"delete-dir denied without delete", domain.OpDeleteDir, domain.Permissions{domain.PermRead, domain.PermWrite}, false},
		{"nothing allowed with empty set", domain.OpReadFile, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.op, tt.perms); got != tt.want {
				t.Errorf("Allowed(%q, %v) = %v, want %v", tt.op, tt.perms, got, tt.want)
			}
		})
	}
}

func TestEveryOperationHasACapability(t *testing.T) {
	for _, op := range domain.Operations {
		if _, ok := Required(op); !ok {
			t.Errorf("operation %q has no required capability", op)
		}
	}
}
