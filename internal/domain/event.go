package domain

type EventKind string

const (
	EventMemberAdded            EventKind = "member/added"
	EventMemberUpdated          EventKind = "member/updated"
	EventMemberRemoved          EventKind = "member/removed"
	EventCursorAdded            EventKind = "cursor/added"
	EventCursorRemoved          EventKind = "cursor/removed"
	EventCursorMoved            EventKind = "cursor/moved"
	EventParagraphChanged       EventKind = "paragraph/changed"
	EventParagraphStyleModified EventKind = "paragraphstyle/modified"
	EventStepsInserted          EventKind = "steps/inserted"
	EventStepsRemoved           EventKind = "steps/removed"
	EventCommonStyleCreated     EventKind = "style/created"
	EventCommonStyleDeleted     EventKind = "style/deleted"
	EventAutomaticStyleCreated  EventKind = "automaticstyle/created"
	EventAutomaticStyleDeleted  EventKind = "automaticstyle/deleted"
	EventBlobSet                EventKind = "blob/set"
	EventBlobRemoved            EventKind = "blob/removed"
	EventMetadataUpdated        EventKind = "metadata/updated"
	EventOperationExecuted      EventKind = "operation/executed"
)

// Event is a document change notification. Payload holds the kind specific
// value, e.g. a Cursor for cursor events or a StyleKey for style events.
type Event struct {
	Kind      EventKind
	MemberID  MemberID
	Timestamp int64
	Payload   any
}

type ParagraphChange struct {
	Paragraph int
	Position  int
}

type StepsChange struct {
	Position int
	Length   int
}
