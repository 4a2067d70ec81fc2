package ptc

import (
	"fmt"
	"time"

	"github.com/kbukum/ptcpipe/config"
	"github.com/kbukum/ptcpipe/util"
)

// Config configures a Pipeline. It embeds config.ServiceConfig the way
// every other service config in this module does, so it can be loaded
// with config.LoadConfig from config.yml/.env or the environment.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	// WorkerCount is the number of transformer goroutines. Must be >= 1.
	WorkerCount int `yaml:"worker_count" mapstructure:"worker_count"`

	// WakeupVariant selects "semaphore" or "poll". Defaults to "semaphore".
	WakeupVariant string `yaml:"wakeup_variant" mapstructure:"wakeup_variant"`

	// PollInterval is used only when WakeupVariant is "poll".
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// MaxItems optionally caps the total items produced; 0 disables the
	// cap. Honoured only when the Source is wrapped in a LimitSource.
	MaxItems int `yaml:"max_items" mapstructure:"max_items"`

	// MaxItemBytes is a human-entered soft-budget hint ("64MB") logged by
	// the coordinator at startup; the core never enforces it.
	MaxItemBytes string `yaml:"max_item_bytes" mapstructure:"max_item_bytes"`
}

// DefaultConfig returns a Config with sensible defaults for name.
func DefaultConfig(name string) Config {
	cfg := Config{
		WorkerCount:   4,
		WakeupVariant: string(WakeupSemaphore),
		PollInterval:  DefaultPollInterval,
	}
	cfg.Name = name
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.WakeupVariant == "" {
		c.WakeupVariant = string(WakeupSemaphore)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("ptc: worker_count must be >= 1 (got %d)", c.WorkerCount)
	}
	if !util.Contains([]string{string(WakeupSemaphore), string(WakeupPoll)}, c.WakeupVariant) {
		return fmt.Errorf("ptc: wakeup_variant must be one of [semaphore, poll] (got %q)", c.WakeupVariant)
	}
	return nil
}

// inputCapacity returns K1, the input buffer's slot count: one extra slot
// beyond the worker count so a worker finishing a transform never has to
// wait for another worker's slot, and the producer can stay one step
// ahead of the workers.
func (c *Config) inputCapacity() int {
	return c.WorkerCount + 1
}

// outputCapacity returns K2, the output buffer's slot count.
func (c *Config) outputCapacity() int {
	return c.WorkerCount + 1
}

// itemByteBudget parses MaxItemBytes for logging purposes only.
func (c *Config) itemByteBudget() int64 {
	return util.ParseSize(c.MaxItemBytes, 0)
}
