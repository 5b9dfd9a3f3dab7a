package simple

// Config bounds the work a single run may do
type Config struct {
	// PassFactor scales the forward-chaining pass bound:
	// at most len(rules)*PassFactor + 1 passes before the run is aborted.
	PassFactor int

	// MaxProofDepth bounds the nesting of backward-chaining subgoals,
	// counting every rule expansion and every negation.
	MaxProofDepth int
}

// DefaultConfig returns the bounds used when none are configured
func DefaultConfig() Config {
	return Config{
		PassFactor:    3,
		MaxProofDepth: 64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PassFactor <= 0 {
		c.PassFactor = d.PassFactor
	}
	if c.MaxProofDepth <= 0 {
		c.MaxProofDepth = d.MaxProofDepth
	}
	return c
}
