// Package routing decides which folder a validated document is filed into.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

// FolderLister lists the immediate subfolders of a folder. Pagination is the
// lister's concern; it returns every child.
type FolderLister interface {
	ListFolders(ctx context.Context, creds model.Credentials, parentID string) ([]model.Folder, error)
}

// Resolver finds the unique Discovery folder for a case. It never picks
// between several candidates.
type Resolver struct {
	lister    FolderLister
	logger    *slog.Logger
	now       func() time.Time
	discovery *regexp.Regexp
	cfg       Config
}

// NewResolver creates a resolver with the default folder layout.
func NewResolver(lister FolderLister, logger *slog.Logger) *Resolver {
	r, err := NewResolverWithConfig(lister, DefaultConfig(), logger)
	if err != nil {
		panic(err)
	}
	return r
}

// NewResolverWithConfig creates a resolver for a custom folder layout.
func NewResolverWithConfig(lister FolderLister, cfg Config, logger *slog.Logger) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	re, err := common.CompileRegex(cfg.DiscoveryPattern, 0)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		lister:    lister,
		cfg:       cfg,
		discovery: re,
		now:       time.Now,
		logger:    common.OrDefault(logger),
	}, nil
}

// WithClock sets the clock used to decide which year root is current.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// YearRootName returns the name of the root folder holding a year's cases.
func (r *Resolver) YearRootName(year int) string {
	if year == r.now().Year() {
		return r.cfg.RootName
	}
	return fmt.Sprintf(r.cfg.ArchiveRootFormat, year)
}

// Resolve walks year root, case folder and Discovery folder. Missing or
// ambiguous folders yield *Error; listing failures are returned wrapped.
func (r *Resolver) Resolve(ctx context.Context, creds model.Credentials, id model.CaseIdentifier) (model.Folder, error) {
	rootName := r.YearRootName(id.Year)
	root, err := r.single(ctx, creds, r.cfg.RootID, ScopeYearRoot, rootName, func(f model.Folder) bool {
		return strings.EqualFold(strings.TrimSpace(f.Name), rootName)
	})
	if err != nil {
		return model.Folder{}, err
	}

	pd := id.PDNumber()
	caseFolder, err := r.single(ctx, creds, root.ID, ScopeCase, pd, func(f model.Folder) bool {
		return strings.EqualFold(leadingToken(f.Name), pd)
	})
	if err != nil {
		return model.Folder{}, err
	}

	target, err := r.single(ctx, creds, caseFolder.ID, ScopeDiscovery, r.cfg.DiscoveryPattern, func(f model.Folder) bool {
		return r.discovery.MatchString(f.Name)
	})
	if err != nil {
		return model.Folder{}, err
	}

	r.logger.Debug("Resolved target folder",
		"case", pd,
		"root", root.ID,
		"case_folder", caseFolder.ID,
		"discovery", target.ID)
	return target, nil
}

func (r *Resolver) single(
	ctx context.Context,
	creds model.Credentials,
	parentID string,
	scope Scope,
	query string,
	match func(model.Folder) bool,
) (model.Folder, error) {
	children, err := r.lister.ListFolders(ctx, creds, parentID)
	if err != nil {
		return model.Folder{}, fmt.Errorf("failed to list folders in %s: %w", parentID, err)
	}

	var matches []model.Folder
	for _, f := range children {
		if match(f) {
			matches = append(matches, f)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		kind := model.KindCaseFolderNotFound
		if scope == ScopeDiscovery {
			kind = model.KindDiscoveryFolderNotFound
		}
		return model.Folder{}, &Error{Kind: kind, Scope: scope, Query: query, Parent: parentID}
	default:
		return model.Folder{}, &Error{
			Kind:    model.KindDuplicateCaseFolder,
			Scope:   scope,
			Query:   query,
			Parent:  parentID,
			Matches: matches,
		}
	}
}

// leadingToken returns the name up to the first space, underscore or dash,
// so "PD251234 Smith" and "PD251234_Smith" both yield "PD251234".
func leadingToken(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-'
	}); i >= 0 {
		return name[:i]
	}
	return name
}
