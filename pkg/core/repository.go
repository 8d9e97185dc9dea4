package core

import "context"

// DocumentStore provides parsed documents (content plus metadata snapshot).
type DocumentStore interface {
	// Get retrieves a document by its ID. Metadata is nil when the document
	// has no front-matter block.
	Get(ctx context.Context, id string) (Document, error)

	// List returns all available documents.
	List(ctx context.Context) ([]Document, error)
}

// ContentStore reads and replaces the full text of a document.
// Writes are whole-document replacements, never line-level patches.
type ContentStore interface {
	ReadContent(ctx context.Context, id string) (string, error)
	WriteContent(ctx context.Context, id string, content string) error
}

// Watchable defines an interface for repositories that emit change events.
type Watchable interface {
	// Watch observes changes matching the glob pattern until ctx is done.
	Watch(ctx context.Context, pattern string) (<-chan Event, error)
}

// ActionInfo describes an invocable action for listing and selection.
type ActionInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Trigger carries the change that caused an action invocation.
type Trigger struct {
	DocumentID string
	Field      string
	Previous   any
	Current    any
}

// ActionRegistry maps opaque action identifiers to invocable actions.
type ActionRegistry interface {
	// Actions lists every available action.
	Actions(ctx context.Context) []ActionInfo

	// Invoke runs the action identified by id. Unknown identifiers fail
	// with ErrUnknownAction.
	Invoke(ctx context.Context, id string, trigger Trigger) error
}

// RuleSource provides the current rule configuration.
// It is consulted on every dispatch.
type RuleSource interface {
	Rules(ctx context.Context) (RuleSet, error)
}
