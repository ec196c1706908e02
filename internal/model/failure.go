package model

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies a terminal processing failure. Each kind maps to one
// notification template.
type ErrorKind string

// Error kinds.
const (
	KindInvalidFolderName       ErrorKind = "InvalidFolderName"
	KindFileTooLarge            ErrorKind = "FileTooLarge"
	KindMissingStamps           ErrorKind = "MissingStamps"
	KindInconsecutiveStamps     ErrorKind = "InconsecutiveStamps"
	KindCaseFolderNotFound      ErrorKind = "CaseFolderNotFound"
	KindDuplicateCaseFolder     ErrorKind = "DuplicateCaseFolder"
	KindDiscoveryFolderNotFound ErrorKind = "DiscoveryFolderNotFound"
	KindLookupError             ErrorKind = "LookupError"
	KindInvocationError         ErrorKind = "InvocationError"
)

// ErrorKinds lists every kind in a stable order.
func ErrorKinds() []ErrorKind {
	return []ErrorKind{
		KindInvalidFolderName,
		KindFileTooLarge,
		KindMissingStamps,
		KindInconsecutiveStamps,
		KindCaseFolderNotFound,
		KindDuplicateCaseFolder,
		KindDiscoveryFolderNotFound,
		KindLookupError,
		KindInvocationError,
	}
}

// IsValid reports whether k is a known kind.
func (k ErrorKind) IsValid() bool {
	for _, known := range ErrorKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// ProcessingError is terminal for the file it names.
type ProcessingError struct {
	Context map[string]string
	Kind    ErrorKind
	FileID  string
	Detail  string
}

// NewProcessingError creates a ProcessingError with an empty context.
func NewProcessingError(kind ErrorKind, fileID, detail string) *ProcessingError {
	return &ProcessingError{
		Kind:    kind,
		FileID:  fileID,
		Detail:  detail,
		Context: make(map[string]string),
	}
}

// With adds a context entry and returns the error for chaining.
func (e *ProcessingError) With(key, value string) *ProcessingError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	if value != "" {
		e.Context[key] = value
	}
	return e
}

func (e *ProcessingError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + e.Context[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Detail, strings.Join(pairs, ", "))
}
