package reconcile

// Policy decides what happens when an incoming record matches an existing
// target record.
type Policy string

// Conflict policies.
const (
	// PolicySkip keeps the existing record untouched.
	PolicySkip Policy = "skip"
	// PolicyUpdate overwrites the existing record's mutable fields.
	PolicyUpdate Policy = "update"
)

// Valid reports whether the policy is a known value. The empty policy is
// valid and behaves as skip.
func (p Policy) Valid() bool {
	switch p {
	case "", PolicySkip, PolicyUpdate:
		return true
	}
	return false
}

// update reports whether the policy asks for an overwrite.
func (p Policy) update() bool {
	return p == PolicyUpdate
}

// Policies carries the per-entity conflict policies. Events have none:
// they are immutable once migrated, so any match is always a skip.
type Policies struct {
	Member       Policy
	Registration Policy
}

// Valid reports whether every policy is a known value.
func (p Policies) Valid() bool {
	return p.Member.Valid() && p.Registration.Valid()
}
