package ir

// Version constants recorded with every registered package.
const (
	// ManifestVersion is the manifest schema version.
	ManifestVersion = "1"

	// CompilerVersion is the stigc version. Registry entries written by an
	// incompatible compiler are never reused.
	CompilerVersion = "0.1.0"
)
