// Package permission maps filesystem operations to the capability they require.
package permission

import "github.com/ashureev/shsh-chat/internal/domain"

var required = map[domain.Operation]domain.Permission{
	domain.OpReadFile:   domain.PermRead,
	domain.OpListFiles:  domain.PermRead,
	domain.OpWriteFile:  domain.PermWrite,
	domain.OpCreateDir:  domain.PermWrite,
	domain.OpEditFile:   domain.PermWrite,
	domain.OpDeleteFile: domain.PermDelete,
	domain.OpDeleteDir:  domain.PermDelete,
}

// Required returns the capability op needs. ok is false for unknown operations.
func Required(op domain.Operation) (domain.Permission, bool) {
	p, ok := required[op]
	return p, ok
}

// Allowed reports whether op may run under perms. Unknown operations are always denied.
func Allowed(op domain.Operation, perms domain.Permissions) bool {
	p, ok := required[op]
	if !ok {
		return false
	}
	return perms.Has(p)
}
