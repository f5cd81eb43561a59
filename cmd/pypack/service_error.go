// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/pypack/pypack/internal/archive"
	"github.com/pypack/pypack/internal/config"
	"github.com/pypack/pypack/internal/interp"
	"github.com/pypack/pypack/internal/issue"
	"github.com/pypack/pypack/internal/manifest"
	"github.com/pypack/pypack/internal/pipeline"
	"github.com/pypack/pypack/internal/resolver"
	"github.com/pypack/pypack/internal/workspace"
)

// ServiceError is an error that carries rendering information for the CLI
// layer: a pre-styled message and an optional issue catalog entry.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a command failure to an issue catalog entry and a
// styled message. The id recorded by the failing stage wins; sentinels
// cover errors raised without one. Zero means no catalog entry applies.
func classifyError(err error, verbose bool) *ServiceError {
	var id issue.Id
	var ae *issue.ActionableError
	switch {
	case errors.As(err, &ae) && ae.Issue != 0:
		id = ae.Issue
	case errors.Is(err, resolver.ErrEntryUnreadable):
		id = issue.EntryScriptNotFoundId
	case errors.Is(err, resolver.ErrEntryParse), errors.Is(err, pipeline.ErrEntryCompile):
		id = issue.EntryScriptParseFailedId
	case errors.Is(err, interp.ErrProbe):
		id = issue.InterpreterNotFoundId
	case errors.Is(err, workspace.ErrInvalidOutputName):
		id = issue.InvalidOutputNameId
	case errors.Is(err, workspace.ErrCreate):
		id = issue.WorkspaceCreateFailedId
	case errors.Is(err, pipeline.ErrArtifactWrite), errors.Is(err, archive.ErrArchiveWrite):
		id = issue.ArtifactWriteFailedId
	case errors.Is(err, manifest.ErrRead):
		id = issue.ManifestReadFailedId
	case errors.Is(err, config.ErrLoad):
		id = issue.ConfigLoadFailedId
	}
	// Permission problems get their own advice whatever stage hit them.
	if errors.Is(err, fs.ErrPermission) {
		id = issue.PermissionDeniedId
	}

	return newServiceError(err, id, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose)))
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// show their suggestions, and the full cause chain when verbose.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// renderServiceError prints the styled message, then the issue help
// rendered with the glamour style named by colorScheme.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, colorScheme string) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if colorScheme == "" {
		colorScheme = string(config.ColorSchemeAuto)
	}
	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render(colorScheme)
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}
