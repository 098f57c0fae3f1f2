package ir

// ItemVersion maps a per-item monotonic sequence number to a revision.
type ItemVersion struct {
	ItemID     string `json:"item_id"`
	VersionSeq int64  `json:"version_seq"`
	RevisionID string `json:"revision_id"`
}

// ParentEdge is a revision DAG edge. Merge revisions have two.
type ParentEdge struct {
	RevisionID       string `json:"revision_id"`
	ParentRevisionID string `json:"parent_revision_id"`
}

// SyncBase records, on the local replica, the remote head an item was last
// synced to and the field values at that point.
type SyncBase struct {
	ItemID           string            `json:"item_id"`
	RemoteRevisionID string            `json:"remote_revision_id"`
	Fields           map[string]string `json:"fields"`
	SyncedAt         int64             `json:"synced_at"`
}
