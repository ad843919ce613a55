package intel

import "errors"

// Sentinel errors shared by store implementations.
var (
	// ErrDomainNotFound is returned when a lookup names an unknown domain.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrNoDomains is returned by NextDomain when the store is empty.
	ErrNoDomains = errors.New("no domains available")
)
