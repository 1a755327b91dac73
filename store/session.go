package store

// PendingSession is a snapshot of an in-progress conversation session.
// Snapshots let a restarted process resume collection instead of losing
// everything the user already said. Payload is the engine's own JSON
// serialization of the partial task spec and conversation history.
type PendingSession struct {
	UID       string
	OwnerUser string
	State     string
	Payload   string
	CreatedTs int64
	UpdatedTs int64
}

// FindPendingSession is the filter for session snapshot lookups.
type FindPendingSession struct {
	UID       *string
	OwnerUser *string
}

// DeletePendingSession identifies a snapshot to remove.
type DeletePendingSession struct {
	UID string
}
