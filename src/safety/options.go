package safety

// Options carries the global safety flags.
type Options struct {
	// DryRun logs planned mutations without performing them.
	DryRun bool
	// Yes answers every confirmation prompt with yes.
	Yes bool
}
