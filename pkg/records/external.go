package records

// ExternalIDMap accumulates source-external-id → target-id associations for
// one entity kind during reconciliation. The first target id written for an
// external id wins; later distinct ids are recorded as duplicates, never
// overwritten. The ID-mapping report consumes the full data afterwards.
type ExternalIDMap struct {
	entity  Entity
	targets map[string][]string // external id -> distinct target ids, first wins
	order   []string            // insertion order of external ids
}

// NewExternalIDMap creates an empty map for the given entity kind.
func NewExternalIDMap(entity Entity) *ExternalIDMap {
	return &ExternalIDMap{
		entity:  entity,
		targets: make(map[string][]string),
	}
}

// Entity returns the entity kind the map covers.
func (m *ExternalIDMap) Entity() Entity {
	return m.entity
}

// Add associates an external id with a target id. It returns true when this
// is the winning (first) association; a later, distinct target id is
// retained only as a duplicate.
func (m *ExternalIDMap) Add(externalID, targetID string) bool {
	if externalID == "" || targetID == "" {
		return false
	}

	existing, ok := m.targets[externalID]
	if !ok {
		m.targets[externalID] = []string{targetID}
		m.order = append(m.order, externalID)
		return true
	}

	for _, id := range existing {
		if id == targetID {
			return false
		}
	}
	m.targets[externalID] = append(existing, targetID)
	return false
}

// Resolve returns the winning target id for an external id.
func (m *ExternalIDMap) Resolve(externalID string) (string, bool) {
	ids, ok := m.targets[externalID]
	if !ok || len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// Len returns the number of distinct external ids recorded.
func (m *ExternalIDMap) Len() int {
	return len(m.targets)
}

// Data returns a copy of the full association data, including duplicate
// target ids, keyed by external id.
func (m *ExternalIDMap) Data() map[string][]string {
	out := make(map[string][]string, len(m.targets))
	for ext, ids := range m.targets {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[ext] = cp
	}
	return out
}

// Associations returns only the winning external-id → target-id pairs.
func (m *ExternalIDMap) Associations() map[string]string {
	out := make(map[string]string, len(m.targets))
	for ext, ids := range m.targets {
		if len(ids) > 0 {
			out[ext] = ids[0]
		}
	}
	return out
}
