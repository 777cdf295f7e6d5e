package extractor

// LogLevel controls how much of the per-entry trace reaches the GUI log
// callback; the side-log file always receives the full trace regardless
// of this setting (spec.md §6.4).
type LogLevel int

const (
	LogNone LogLevel = iota
	LogSilent
	LogMinimal
	LogError
	LogWarnings
	LogFull
)

// Config is the driver-input record from spec.md §6.2.
type Config struct {
	IndexPath       string // path to the .b2index file
	ContainerExt    string // extension appended to a resolved container name lacking one

	OutputDirectory string

	EnableHeaderPath  bool
	EnableContentPath bool

	SkipWemFiles      bool
	SkipBinkFiles     bool
	SkipExistingFiles bool
	SkipResAndAce     bool
	SkipConfigFiles   bool
	OnlyAssets        bool

	LogLevel LogLevel

	// CodecDisabledReason, if non-empty, starts the run with Oodle
	// decompression disabled (degraded mode) instead of attempting native
	// calls — used by callers that already know FFI is unavailable.
	CodecDisabledReason string
}

// Callbacks are the two GUI-facing function fields spec.md §6.3 and §9
// describe: narrow, driver-owned, and kept separate from the core so it
// stays headless-testable. Either may be nil.
type Callbacks struct {
	Progress func(fractionPercent float64)
	Log      func(message string)
}
