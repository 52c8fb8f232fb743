package acs

import "github.com/rotisserie/eris"

// Fatal conditions abort a run before any output is written.
var (
	ErrSchemaMismatch  = eris.New("acs: schema mismatch")
	ErrLabelResolution = eris.New("acs: label resolution failed")
	ErrDuplicateCode   = eris.New("acs: duplicate variable code")
	ErrDuplicateGeoID  = eris.New("acs: duplicate geo id")
	ErrMissingGeoID    = eris.New("acs: missing geo id")
	ErrUnknownState    = eris.New("acs: unknown state code")
	ErrInvalidRequest  = eris.New("acs: invalid request")
)

// Row-level conditions are reported and the row is excluded.
var (
	ErrMalformedVariableName = eris.New("acs: malformed variable name")
	ErrJoinMismatch          = eris.New("acs: join mismatch")
)
