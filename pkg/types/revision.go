package types

import "time"

// Revision is an accepted configuration document as persisted by the
// revision store
type Revision struct {
	ID       string `json:"id"`
	Sequence uint64 `json:"sequence"`

	// Schema is the version the document validated against; Declared is
	// what the submitted document named in validate-with
	Schema   string   `json:"schema"`
	Declared string   `json:"declared"`
	Path     []string `json:"path,omitempty"`
	Steps    int      `json:"steps"`

	AdminEpoch int `json:"admin_epoch"`
	Epoch      int `json:"epoch"`
	NumUpdates int `json:"num_updates"`

	AcceptedAt time.Time  `json:"accepted_at"`
	UpgradedAt *time.Time `json:"upgraded_at,omitempty"`

	// Document is the serialized XML of the accepted document
	Document string `json:"document"`
}
