package config

// Belief store backends.
const (
	BackendProlog  = "prolog"
	BackendDatalog = "datalog"
)

// ValidBackends lists the accepted belief backends.
var ValidBackends = []string{BackendProlog, BackendDatalog}

// BeliefsConfig configures the belief store.
type BeliefsConfig struct {
	Backend   string `yaml:"backend"`    // prolog, datalog
	FactLimit int    `yaml:"fact_limit"` // 0 = unlimited
	Seed      int64  `yaml:"seed"`       // seed for rand/random builtins, 0 = time based
}
