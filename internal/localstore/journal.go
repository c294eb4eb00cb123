package localstore

import (
	"time"
)

// JournalEntry is one recorded mutation outcome. The journal is local
// diagnostics only; it never feeds back into sync state.
type JournalEntry struct {
	ID       int64  `json:"id"`
	TS       string `json:"ts"`
	Action   string `json:"action"`
	EntityID *int64 `json:"entityId,omitempty"`
	Outcome  string `json:"outcome"`
	Detail   string `json:"detail,omitempty"`
}

// RecordMutation appends a journal entry. Failures are swallowed; the
// journal must never break a mutation.
func (s *Store) RecordMutation(action string, entityID int64, outcome, detail string) {
	ts := time.Now().UTC().Format(time.RFC3339)
	var id any
	if entityID != 0 {
		id = entityID
	}
	_, _ = s.DB.Exec(
		`INSERT INTO journal(ts, action, entity_id, outcome, detail) VALUES (?, ?, ?, ?, ?)`,
		ts, action, id, outcome, detail,
	)
}

// RecentMutations returns the latest n journal entries, newest first.
func (s *Store) RecentMutations(n int) ([]JournalEntry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := s.DB.Query(
		`SELECT id, ts, action, entity_id, outcome, detail FROM journal ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Action, &e.EntityID, &e.Outcome, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
