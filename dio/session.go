package dio

import "github.com/chainvault/chainvault/pipeline"

// Session carries a caller's cryptographic material and the durability
// scope a commit must satisfy before returning. It is constructed fresh per
// transaction and never retained past it.
type Session struct {
	pipeline.Session
	Scope TransactionScope
}
