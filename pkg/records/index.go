package records

// IdentityIndex maps derived identity keys to target record ids for one
// entity kind. It is built once at run start from the target's existing
// records and mutated in place as the run creates new ones, so later rows
// observe earlier creates. A key, once present, always resolves to the same
// id for the rest of the run.
type IdentityIndex struct {
	entity Entity
	ids    map[string]string
}

// NewIdentityIndex creates an empty index for the given entity kind.
func NewIdentityIndex(entity Entity) *IdentityIndex {
	return &IdentityIndex{
		entity: entity,
		ids:    make(map[string]string),
	}
}

// Entity returns the entity kind the index covers.
func (ix *IdentityIndex) Entity() Entity {
	return ix.entity
}

// Lookup returns the target id for an identity key.
func (ix *IdentityIndex) Lookup(key string) (string, bool) {
	id, ok := ix.ids[key]
	return id, ok
}

// Insert records a key→id association. The first association wins; an
// identity key is immutable for the rest of the run.
func (ix *IdentityIndex) Insert(key, id string) {
	if _, exists := ix.ids[key]; exists {
		return
	}
	ix.ids[key] = id
}

// Len returns the number of indexed identities.
func (ix *IdentityIndex) Len() int {
	return len(ix.ids)
}
