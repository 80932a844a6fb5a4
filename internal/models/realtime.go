package models

import "time"

// Tables watched by the change listener.
const (
	TableAnnouncements         = "announcements"
	TableAnnouncementReactions = "announcement_reactions"
	TableAnnouncementReads     = "announcement_reads"
)

// WatchedTables lists the default change feed subscriptions.
func WatchedTables() []string {
	return []string{TableAnnouncements, TableAnnouncementReactions, TableAnnouncementReads}
}

// ChangeType is the row operation carried by a change notification.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	// ChangeResync is emitted after the transport reconnects and events may have been lost.
	ChangeResync  ChangeType = "RESYNC"
	ChangeUnknown ChangeType = "UNKNOWN"
)

// ChangeEvent signals that something changed in a watched table.
type ChangeEvent struct {
	Table      string     `json:"table"`
	Type       ChangeType `json:"type"`
	RecordID   string     `json:"id,omitempty"`
	ReceivedAt time.Time  `json:"received_at"`
}
