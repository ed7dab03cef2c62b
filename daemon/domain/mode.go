package domain

// Mode is the daemon's swap strategy, resolved once at startup.
type Mode string

const (
	// ModeAuto defers to the mode selector at startup.
	ModeAuto Mode = "auto"
	// ModeZswapSwapFC runs zswap in front of the on-disk swap-file controller.
	ModeZswapSwapFC Mode = "zswap+swapfc"
	// ModeZramSwapFC runs the zram pool alongside the swap-file controller.
	ModeZramSwapFC Mode = "zram+swapfc"
	// ModeZram runs only the zram pool.
	ModeZram Mode = "zram"
	// ModeManual runs whatever controllers the config explicitly enables,
	// with no autoconfig decision applied.
	ModeManual Mode = "manual"
	// ModeDisabled runs no swap controller at all.
	ModeDisabled Mode = "disabled"
)

// Concrete reports whether m is a resolved, runnable mode (i.e. not "auto").
func (m Mode) Concrete() bool {
	return m != ModeAuto
}

// UsesZram reports whether m runs the zram pool controller.
func (m Mode) UsesZram() bool {
	return m == ModeZram || m == ModeZramSwapFC
}

// UsesZswap reports whether m runs the zswap configurator.
func (m Mode) UsesZswap() bool {
	return m == ModeZswapSwapFC
}

// UsesSwapFC reports whether m runs the on-disk swap-file controller.
func (m Mode) UsesSwapFC() bool {
	return m == ModeZswapSwapFC || m == ModeZramSwapFC
}
