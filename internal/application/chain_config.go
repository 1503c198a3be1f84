package application

import "strings"

// ChainConfig is the declarative form of a chain, as loaded from YAML or
// HCL. It names blueprints by registry id and wires nodes with "node.port"
// references.
type ChainConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across engine updates.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata contains descriptive information about the chain. Its name
	// becomes the chain id.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Nodes lists the chain's nodes in declaration order, which is also the
	// tie-break order for execution.
	Nodes []NodeConfig `yaml:"nodes" validate:"required,min=1,dive"`
	// Links connects output ports to input ports.
	Links []LinkConfig `yaml:"links" validate:"dive"`
	// Required lists the nodes whose success decides the run outcome.
	// When empty every node is required.
	Required []string `yaml:"required,omitempty" validate:"dive,nodeid"`
	// Run holds driver settings for runs of this chain.
	Run RunConfig `yaml:"run,omitempty"`
}

// Metadata provides descriptive information about a chain to support
// organization and discovery.
type Metadata struct {
	// Name is the chain id and must be unique within a deployment.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains what the chain does.
	Description string `yaml:"description,omitempty" validate:"max=1000"`
	// Tags are categorical labels for filtering and grouping chains.
	Tags []string `yaml:"tags,omitempty" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs for external systems.
	Labels map[string]string `yaml:"labels,omitempty" validate:"max=50"`
}

// NodeConfig declares one node.
type NodeConfig struct {
	// ID is the node id, unique within the chain. It may not contain dots
	// so that port references stay unambiguous.
	ID string `yaml:"id" validate:"required,nodeid,max=100"`
	// Blueprint is the registry id of the node's blueprint.
	Blueprint string `yaml:"blueprint" validate:"required,min=1,max=100"`
	// Configuration pins the blueprint configuration by index. When nil the
	// first configuration matching the node's links is used.
	Configuration *int `yaml:"configuration,omitempty" validate:"omitempty,min=0"`
	// Params are assembly-time parameters handed to the blueprint.
	Params map[string]any `yaml:"params,omitempty"`
	// Inputs binds literal values to input ports.
	Inputs map[string]any `yaml:"inputs,omitempty"`
}

// LinkConfig connects an output port to an input port.
type LinkConfig struct {
	// From is the producing port as "node.port".
	From string `yaml:"from" validate:"required,portref"`
	// To is the consuming port as "node.port".
	To string `yaml:"to" validate:"required,portref"`
}

// RunConfig holds driver settings carried by a chain document.
type RunConfig struct {
	// Policy is "continue" (the default) or "abort".
	Policy string `yaml:"policy,omitempty" validate:"omitempty,oneof=continue abort"`
	// MaxPasses bounds the number of passes per run.
	MaxPasses int `yaml:"max_passes,omitempty" validate:"omitempty,min=1,max=100000"`
	// MaxAttempts is how many times a failing node is visited.
	MaxAttempts int `yaml:"max_attempts,omitempty" validate:"omitempty,min=1,max=100"`
	// Fuel is the per-run fuel budget; zero means unlimited.
	Fuel int64 `yaml:"fuel,omitempty" validate:"omitempty,min=0"`
}

// DriverOptions translates the settings into driver options. Unset fields
// keep the driver defaults.
func (c RunConfig) DriverOptions() []DriverOption {
	var opts []DriverOption
	if strings.EqualFold(c.Policy, AbortOnFailure.String()) {
		opts = append(opts, WithFailurePolicy(AbortOnFailure))
	}
	if c.MaxPasses > 0 {
		opts = append(opts, WithMaxPasses(c.MaxPasses))
	}
	if c.MaxAttempts > 0 {
		opts = append(opts, WithMaxAttempts(c.MaxAttempts))
	}
	return opts
}
