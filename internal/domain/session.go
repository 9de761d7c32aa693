package domain

import "time"

// SessionRecord is what the session store keeps per session id.
// It is replaced whole on every write; Version increases with each write.
type SessionRecord struct {
	User          User      `json:"user"`
	ActiveSection SectionID `json:"activeSection,omitempty"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Me is the identity snapshot returned to the dashboard.
type Me struct {
	User          User      `json:"user"`
	ActiveSection SectionID `json:"activeSection,omitempty"`
}
