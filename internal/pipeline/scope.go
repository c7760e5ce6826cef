package pipeline

import (
	"fmt"
	"strings"

	"legisum/internal/model"
)

// Scope narrows a run to specific entities. The zero value (or ScopeAll)
// covers everything. A scoped run processes exactly the listed refs, in
// tier order; dependencies outside the scope are not pulled in.
type Scope struct {
	refs map[model.EntityRef]struct{}
}

// ScopeAll covers every entity in the store.
var ScopeAll = Scope{}

// ParseScope parses "all" or a comma-separated list of kind:id refs.
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") {
		return ScopeAll, nil
	}
	refs := make(map[model.EntityRef]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ref, err := model.ParseEntityRef(part)
		if err != nil {
			return Scope{}, fmt.Errorf("scope entry %q: %w", part, err)
		}
		refs[ref] = struct{}{}
	}
	if len(refs) == 0 {
		return Scope{}, fmt.Errorf("scope %q names no entities", raw)
	}
	return Scope{refs: refs}, nil
}

// NewScope builds a scope from explicit refs.
func NewScope(refs ...model.EntityRef) Scope {
	set := make(map[model.EntityRef]struct{}, len(refs))
	for _, ref := range refs {
		set[ref] = struct{}{}
	}
	return Scope{refs: set}
}

func (s Scope) All() bool { return len(s.refs) == 0 }

func (s Scope) Includes(ref model.EntityRef) bool {
	if s.All() {
		return true
	}
	_, ok := s.refs[ref]
	return ok
}

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	parts := make([]string, 0, len(s.refs))
	for ref := range s.refs {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, ",")
}
