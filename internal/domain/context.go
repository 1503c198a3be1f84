package domain

import (
	"fmt"
	"math"
	"sort"
)

// Key represents a type-safe generic key for accessing values in a
// RuneExecutionContext. The type parameter T ensures compile-time type
// safety when getting and setting values.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// ScopedKey creates a key private to one scope, usually a node id. Blueprints
// use it to keep per-node progress in the context rather than on the node.
func ScopedKey[T any](scope, name string) Key[T] {
	return Key[T]{name: "scope." + scope + "." + name}
}

// Name returns the key's string form.
func (k Key[T]) Name() string { return k.name }

// Predefined context keys supplied by the host.
var (
	// KeyCaster stores the entity that triggered the run.
	KeyCaster = Key[EntityRef]{"rune.caster"}

	// KeyOrigin stores the world position the run is anchored at.
	KeyOrigin = Key[Vector]{"rune.origin"}

	// KeyTick stores the host tick at which the current pass runs.
	KeyTick = Key[int64]{"rune.tick"}
)

// Effect is a host-side change staged by a node. The engine never applies
// effects; the host drains them after a pass or at the end of the run.
type Effect struct {
	// Kind names the effect, e.g. "sound" or "place_block".
	Kind string

	// Source is the id of the node that staged the effect.
	Source string

	// Value is the effect payload, often a port value.
	Value any
}

// MaxFuelCharge bounds a single configured fuel cost. Blueprint and meter
// parameters above it are rejected at assembly.
const MaxFuelCharge = 1_000_000

// Fuel is the scoped resource budget of one run. A zero Limit means
// unlimited.
type Fuel struct {
	Limit int64
	Used  int64
}

// Remaining returns the fuel left, or -1 when unlimited.
func (f Fuel) Remaining() int64 {
	if f.Limit == 0 {
		return -1
	}
	return f.Limit - f.Used
}

// RuneExecutionContext is the per-run state threaded through every node
// call. It is owned by exactly one run and is not safe for concurrent use;
// the driver guarantees single-threaded access.
type RuneExecutionContext struct {
	chainID string
	runID   string
	data    map[string]any
	effects []Effect
	fuel    Fuel
}

// ContextOption customises a RuneExecutionContext at creation.
type ContextOption func(*RuneExecutionContext)

// WithFuelLimit caps the fuel the run may consume.
func WithFuelLimit(limit int64) ContextOption {
	return func(c *RuneExecutionContext) { c.fuel.Limit = limit }
}

// WithValue seeds the context with a raw value under keyName.
func WithValue(keyName string, value any) ContextOption {
	return func(c *RuneExecutionContext) { c.data[keyName] = value }
}

// NewRuneExecutionContext creates the context for one run of chainID.
func NewRuneExecutionContext(chainID, runID string, opts ...ContextOption) *RuneExecutionContext {
	c := &RuneExecutionContext{
		chainID: chainID,
		runID:   runID,
		data:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the id of the chain this run executes.
func (c *RuneExecutionContext) ChainID() string { return c.chainID }

// RunID returns the unique id of this run.
func (c *RuneExecutionContext) RunID() string { return c.runID }

// Get retrieves a value with compile-time type safety. It returns false if
// the key is absent or holds a value of another type.
//
// Example:
//
//	origin, ok := Get(rc, KeyOrigin)
//	if !ok {
//	    // handle missing value
//	}
func Get[T any](c *RuneExecutionContext, key Key[T]) (T, bool) {
	var zero T
	value, exists := c.data[key.name]
	if !exists {
		return zero, false
	}
	val, ok := value.(T)
	return val, ok
}

// Set stores value under key, replacing any previous value.
func Set[T any](c *RuneExecutionContext, key Key[T], value T) {
	c.data[key.name] = value
}

// Delete removes key. Deleting an absent key is a no-op.
func Delete[T any](c *RuneExecutionContext, key Key[T]) {
	delete(c.data, key.name)
}

// GetRaw is the string-keyed form of Get. Prefer Get for type safety.
func (c *RuneExecutionContext) GetRaw(keyName string) (any, bool) {
	v, ok := c.data[keyName]
	return v, ok
}

// Keys returns the stored keys in sorted order.
func (c *RuneExecutionContext) Keys() []string {
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stage queues an effect for the host.
func (c *RuneExecutionContext) Stage(e Effect) {
	c.effects = append(c.effects, e)
}

// Effects returns a copy of the staged effects in staging order.
func (c *RuneExecutionContext) Effects() []Effect {
	out := make([]Effect, len(c.effects))
	copy(out, c.effects)
	return out
}

// DrainEffects returns the staged effects and clears the queue. Hosts call
// it once per tick to apply what the last pass produced.
func (c *RuneExecutionContext) DrainEffects() []Effect {
	out := c.effects
	c.effects = nil
	return out
}

// Consume charges amount fuel. The charge is rejected as a whole with
// ErrFuelExhausted if it would exceed the limit.
func (c *RuneExecutionContext) Consume(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative fuel charge %d", ErrInvalidParameter, amount)
	}
	if c.fuel.Limit > 0 && amount > c.fuel.Limit-c.fuel.Used {
		return fmt.Errorf("%w: need %d, %d left", ErrFuelExhausted, amount, c.fuel.Limit-c.fuel.Used)
	}
	if amount > math.MaxInt64-c.fuel.Used {
		return fmt.Errorf("%w: fuel charge %d overflows usage %d", ErrInvalidParameter, amount, c.fuel.Used)
	}
	c.fuel.Used += amount
	return nil
}

// FuelUsage returns the current fuel budget and consumption.
func (c *RuneExecutionContext) FuelUsage() Fuel { return c.fuel }

// String returns a short description for debugging.
func (c *RuneExecutionContext) String() string {
	return fmt.Sprintf("RuneExecutionContext{chain=%s run=%s keys=%d effects=%d fuel=%d/%d}",
		c.chainID, c.runID, len(c.data), len(c.effects), c.fuel.Used, c.fuel.Limit)
}
