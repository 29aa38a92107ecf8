package ir

// Version constants recorded on provenance entries. Bump IRVersion when the
// canonical shape of the IR changes in a way that affects hashing.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1.0.0"

	// PipelineVersion is the pipeline executor version.
	PipelineVersion = "0.3.0"
)
