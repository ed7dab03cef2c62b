package domain

// Context carries everything a controller needs: the resolved
// configuration, the event bus, the chosen mode, and the runtime directory
// layout. It is built once at start and handed down to every controller —
// supervisor → controllers is the only direction references flow.
type Context struct {
	Version string
	Config  *Config
	Mode    Mode
	Hub     *EventBus
	Runtime RuntimeDir
	NCPU    int
	// RAMTotalBytes is sampled once at start for sizing decisions that must
	// stay stable across a run (e.g. initial pool disksize); the
	// meminfo sampler is still consulted on every monitor tick for the
	// live free/available figures controllers react to.
	RAMTotalBytes int64
}
