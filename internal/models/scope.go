package models

// Scope names one event collection view. Each scope is synchronized
// independently: its own bulk load, its own delta stream cursor.
type Scope string

// Scope constants
const (
	ScopeBrowse         Scope = "browse"          // upcoming public events open to the guest
	ScopeRegistered     Scope = "registered"      // events the guest has requested or joined
	ScopeHostedUpcoming Scope = "hosted-upcoming" // the host's events still ahead
	ScopeHostedPast     Scope = "hosted-past"     // the host's events already held
	ScopeHistory        Scope = "history"         // everything past, newest first
)

// Valid reports whether the scope is one of the known collection views.
func (s Scope) Valid() bool {
	switch s {
	case ScopeBrowse, ScopeRegistered, ScopeHostedUpcoming, ScopeHostedPast, ScopeHistory:
		return true
	}
	return false
}

// Descending reports whether the scope's collection sorts newest-first.
func (s Scope) Descending() bool {
	return s == ScopeHistory
}
