package ir

// Defaults applied when a template or request leaves them out.
const (
	// DefaultVersion is the component version used when a reference has none.
	DefaultVersion = "dev"

	// DefaultStage is the stage used when none is configured.
	DefaultStage = "dev"

	// ProtocolVersion is sent with every engine request.
	ProtocolVersion = "1"
)
