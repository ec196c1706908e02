package routing

import (
	"fmt"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// Scope identifies which level of the lookup failed.
type Scope string

// Lookup levels, outermost first.
const (
	ScopeYearRoot  Scope = "year root"
	ScopeCase      Scope = "case folder"
	ScopeDiscovery Scope = "discovery folder"
)

// Error reports a missing or ambiguous folder. Kind is one of
// CaseFolderNotFound, DuplicateCaseFolder or DiscoveryFolderNotFound.
type Error struct {
	Kind    model.ErrorKind
	Scope   Scope
	Query   string
	Parent  string
	Matches []model.Folder
}

func (e *Error) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("%s: no %s matching %q in folder %s", e.Kind, e.Scope, e.Query, e.Parent)
	}
	ids := make([]string, len(e.Matches))
	for i, f := range e.Matches {
		ids[i] = fmt.Sprintf("%s (%s)", f.Name, f.ID)
	}
	return fmt.Sprintf("%s: %d %ss match %q in folder %s: %s",
		e.Kind, len(e.Matches), e.Scope, e.Query, e.Parent, strings.Join(ids, ", "))
}
