package sender

import (
	"io/ioutil"
	"time"

	"github.com/farwydi/structapi"
)

// Config defines the config for the sender.
type Config struct {
	Logger Logger
	// Dumper receives rows that could not be published or spilled to
	// any queue. NullDumper when unset.
	Dumper                structapi.Dumper
	SendInterval          time.Duration
	SendLimit             int
	UseMemoryFallback     bool
	FileWorkspace         string
	FileMaxCorruptHistory int
	ShowSuccessfulInfo    bool
}

// ConfigDefault is the default config
var ConfigDefault = Config{
	UseMemoryFallback:     true,
	FileWorkspace:         "/tmp",
	FileMaxCorruptHistory: 1,
	ShowSuccessfulInfo:    false,
}

// Helper function to set default values
func configDefault(config ...Config) Config {
	// Return default config if nothing provided
	if len(config) < 1 {
		return ConfigDefault
	}

	// Override default config
	cfg := config[0]

	if cfg.FileWorkspace == "" {
		cfg.FileWorkspace, _ = ioutil.TempDir("", "structapi")
	}

	if cfg.SendLimit == 0 {
		cfg.SendLimit = 1
	}

	if cfg.SendInterval < 100*time.Millisecond {
		cfg.SendInterval = 100 * time.Millisecond
	}

	return cfg
}
