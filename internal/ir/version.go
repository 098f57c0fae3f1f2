package ir

// Version constants for the schema and engine.
const (
	// SchemaVersion is the on-disk schema version (PRAGMA user_version).
	SchemaVersion = 1

	// EngineVersion is the vaultrev engine version.
	EngineVersion = "0.1.0"
)
