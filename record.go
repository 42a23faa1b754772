package walredo

// WALRecord is an opaque WAL record body plus the cursor into it where the
// resource-manager-specific payload ("main data") begins, past the fixed
// XLogRecord header and any block references.
type WALRecord struct {
	Body           []byte
	MainDataOffset uint32
}

// RedoRecord pairs a WAL record with the log sequence number it was
// assigned, in the order it must be replayed.
type RedoRecord struct {
	LSN    uint64
	Record WALRecord
}
