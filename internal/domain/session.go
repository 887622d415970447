package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Permission is a capability tag gating which operations may execute.
type Permission string

const (
	PermRead   Permission = "read"
	PermWrite  Permission = "write"
	PermDelete Permission = "delete"
)

// Valid reports whether p is one of the known capability tags.
func (p Permission) Valid() bool {
	switch p {
	case PermRead, PermWrite, PermDelete:
		return true
	}
	return false
}

// Permissions is a set of capability tags.
type Permissions []Permission

// ParsePermissions parses a comma separated list such as "read,write".
// Duplicates are collapsed; unknown tags are an error.
func ParsePermissions(s string) (Permissions, error) {
	var out Permissions
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		p := Permission(part)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown permission %q", part)
		}
		if !out.Has(p) {
			out = append(out, p)
		}
	}
	return out.Sorted(), nil
}

// Has reports whether the set contains p.
func (ps Permissions) Has(p Permission) bool {
	for _, have := range ps {
		if have == p {
			return true
		}
	}
	return false
}

// Sorted returns a sorted copy of the set.
func (ps Permissions) Sorted() Permissions {
	out := make(Permissions, len(ps))
	copy(out, ps)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as "read, write".
func (ps Permissions) String() string {
	sorted := ps.Sorted()
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

// Session holds the state of one chat session.
//
// Executor is resolved at runtime from ExecutorAddr and is nil when filesystem
// operations are unavailable.
type Session struct {
	ID             string      `json:"session_id"`
	StoreID        string      `json:"store_id"`
	Head           string      `json:"head,omitempty"`
	FilesystemRoot string      `json:"fs_root"`
	Permissions    Permissions `json:"permissions"`
	ExecutorAddr   string      `json:"executor_addr,omitempty"`
	Executor       Executor    `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// HasExecutor returns true if a filesystem executor is attached.
func (s *Session) HasExecutor() bool {
	return s.Executor != nil
}
