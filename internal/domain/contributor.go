package domain

// EmailNotAvailable is recorded when a contributor's email cannot be looked up.
const EmailNotAvailable = "Not available"

// ContributorRecord counts the events attributed to one identity in one role.
type ContributorRecord struct {
	Identity string
	Email    string
	Count    int
}

// ContributorTally maps identities to their records and keeps first-seen order,
// so that reports list contributors in a stable order.
// It is not safe for concurrent use.
type ContributorTally struct {
	records map[string]*ContributorRecord
	order   []string
}

// NewContributorTally returns an empty tally.
func NewContributorTally() *ContributorTally {
	return &ContributorTally{records: make(map[string]*ContributorRecord)}
}

// Increment adds one to identity's count, creating the record on first sight.
// The email is only used when the record is created.
func (t *ContributorTally) Increment(identity, email string) {
	rec, ok := t.records[identity]
	if !ok {
		rec = &ContributorRecord{Identity: identity, Email: email}
		t.records[identity] = rec
		t.order = append(t.order, identity)
	}
	rec.Count++
}

// Get returns a copy of the record for identity.
func (t *ContributorTally) Get(identity string) (ContributorRecord, bool) {
	rec, ok := t.records[identity]
	if !ok {
		return ContributorRecord{}, false
	}
	return *rec, true
}

// Records returns copies of all records in first-seen order.
func (t *ContributorTally) Records() []ContributorRecord {
	out := make([]ContributorRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// Len returns the number of distinct identities.
func (t *ContributorTally) Len() int {
	return len(t.order)
}
