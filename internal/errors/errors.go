// Package errors provides error handling for butterfly.
//
// It re-exports github.com/cockroachdb/errors so every package builds errors
// with stack traces, hints and marks from one import:
//
//	if err := fetch(); err != nil {
//	    return errors.Wrap(err, "fetch related items")
//	}
//
//	// user-safe text travels with the error
//	return errors.WithHint(err, "click the node again to retry")
//
//	// sentinel checks survive wrapping
//	if errors.Is(err, domain.ErrDenied) { ... }
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// Inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)
