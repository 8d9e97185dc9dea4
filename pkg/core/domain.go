// Package core holds the domain types and ports of fieldwatch.
//
// Adapters (filesystem vault, action registry, settings store) implement the
// interfaces declared here; the dispatcher only ever talks to these ports.
package core

import "fmt"

// Metadata represents the parsed front-matter of a document.
// A nil Metadata means the document has no front-matter block.
type Metadata map[string]any

// Document is a single entry of the vault, identified by an ID.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata
}

// EventType represents the type of change in the vault.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in the vault.
type Event struct {
	Type      EventType
	ID        string
	Timestamp int64 // Unix timestamp
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Type, e.ID)
}

type contextKey string

// ChangeReasonKey is the context key for passing the commit message of a content write.
const ChangeReasonKey contextKey = "change_reason"
