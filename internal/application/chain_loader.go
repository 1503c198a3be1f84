package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-rune/internal/ctxlog"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// LoadedChain is a compiled chain together with the document it came from.
type LoadedChain[C any] struct {
	// Template is the compiled chain. It is immutable and shared by every
	// caller that loaded the same document.
	Template *ChainTemplate[C]
	// Config is the validated document. Callers must not modify it.
	Config *ChainConfig
	// Hash is the SHA-256 of the normalised document.
	Hash string
}

// ChainLoader parses, validates and compiles chain documents into chain
// templates, caching the result by content hash.
// YAML and HCL documents that describe the same chain share a cache entry.
type ChainLoader[C any] struct {
	// validator performs struct field validation and custom validation
	// rules for chain configurations.
	validator *validator.Validate
	// registry resolves blueprint ids named by nodes.
	registry ports.BlueprintRegistry[C]
	// cache stores compiled chains indexed by SHA256 hash of the
	// normalised configuration.
	cache map[string]*LoadedChain[C]
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate compilation when multiple goroutines request
	// the same chain simultaneously.
	sf singleflight.Group
}

// NewChainLoader creates a loader resolving blueprints through registry.
func NewChainLoader[C any](registry ports.BlueprintRegistry[C]) (*ChainLoader[C], error) {
	if registry == nil {
		return nil, fmt.Errorf("blueprint registry cannot be nil")
	}

	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	return &ChainLoader[C]{
		validator: v,
		registry:  registry,
		cache:     make(map[string]*LoadedChain[C]),
	}, nil
}

// LoadFromFile loads a chain from path. Files ending in .hcl are parsed as
// HCL, everything else as YAML.
func (cl *ChainLoader[C]) LoadFromFile(ctx context.Context, path string) (*LoadedChain[C], error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(cleanPath), ".hcl") {
		return cl.LoadHCL(ctx, cleanPath, data)
	}
	return cl.LoadYAML(ctx, data)
}

// LoadFromReader loads a YAML chain document from r.
func (cl *ChainLoader[C]) LoadFromReader(ctx context.Context, r io.Reader) (*LoadedChain[C], error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return cl.LoadYAML(ctx, data)
}

// LoadYAML loads a chain from a YAML document. Unknown fields are rejected.
func (cl *ChainLoader[C]) LoadYAML(ctx context.Context, data []byte) (*LoadedChain[C], error) {
	config, err := parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cl.load(ctx, config)
}

// LoadHCL loads a chain from an HCL document. filename is used in
// diagnostics only.
func (cl *ChainLoader[C]) LoadHCL(ctx context.Context, filename string, data []byte) (*LoadedChain[C], error) {
	config, err := parseHCL(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HCL: %w", err)
	}
	return cl.load(ctx, config)
}

// Validate checks config without compiling it.
func (cl *ChainLoader[C]) Validate(config *ChainConfig) error {
	if err := cl.validator.Struct(config); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(config); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// load validates and compiles config, sharing work and results between
// callers loading the same document.
func (cl *ChainLoader[C]) load(ctx context.Context, config *ChainConfig) (*LoadedChain[C], error) {
	logger := ctxlog.FromContext(ctx)

	hash, err := calculateConfigHash(config)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, shared := cl.sf.Do(hash, func() (any, error) {
		// Check cache inside singleflight to handle the race between the
		// cache check and group execution.
		if loaded, ok := cl.getCached(hash); ok {
			logger.Debug("Chain cache hit", "chain", config.Metadata.Name, "hash", hash)
			return loaded, nil
		}

		if err := cl.Validate(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}

		tmpl, err := cl.buildTemplate(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build chain: %w", err)
		}

		loaded := &LoadedChain[C]{Template: tmpl, Config: config, Hash: hash}
		cl.cacheChain(hash, loaded)
		logger.Debug("Chain compiled", "chain", config.Metadata.Name, "hash", hash, "nodes", len(config.Nodes))
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug("Chain load shared with concurrent caller", "hash", hash)
	}
	return v.(*LoadedChain[C]), nil
}

// buildTemplate assembles config through a ChainBuilder.
func (cl *ChainLoader[C]) buildTemplate(config *ChainConfig) (*ChainTemplate[C], error) {
	b := NewChainBuilder[C](config.Metadata.Name)

	for _, n := range config.Nodes {
		bp, err := cl.registry.Lookup(n.Blueprint)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
		if err := b.AddNode(n.ID, bp, n.Params); err != nil {
			return nil, err
		}
		if n.Configuration != nil {
			if err := b.UseConfiguration(n.ID, *n.Configuration); err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
		}
		bound := make([]string, 0, len(n.Inputs))
		for port := range n.Inputs {
			bound = append(bound, port)
		}
		slices.Sort(bound)
		for _, port := range bound {
			if err := b.Bind(n.ID, port, n.Inputs[port]); err != nil {
				return nil, err
			}
		}
	}

	for _, l := range config.Links {
		fromNode, fromPort, err := domain.ParsePortRef(l.From)
		if err != nil {
			return nil, err
		}
		toNode, toPort, err := domain.ParsePortRef(l.To)
		if err != nil {
			return nil, err
		}
		if err := b.Link(fromNode, fromPort, toNode, toPort); err != nil {
			return nil, err
		}
	}

	if err := b.Require(config.Required...); err != nil {
		return nil, err
	}
	return b.Build()
}

// parseYAML unmarshals data with strict decoding so that configuration
// typos are not silently ignored.
func parseYAML(data []byte) (*ChainConfig, error) {
	var config ChainConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &config, nil
}

// calculateConfigHash computes the SHA256 hash of a normalised ChainConfig,
// so semantically identical documents share a hash regardless of format,
// whitespace or key order.
func calculateConfigHash(config *ChainConfig) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(config); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (cl *ChainLoader[C]) getCached(hash string) (*LoadedChain[C], bool) {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	loaded, ok := cl.cache[hash]
	return loaded, ok
}

func (cl *ChainLoader[C]) cacheChain(hash string, loaded *LoadedChain[C]) {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache[hash] = loaded
}

// CacheSize returns the number of cached chains.
func (cl *ChainLoader[C]) CacheSize() int {
	cl.cacheMu.RLock()
	defer cl.cacheMu.RUnlock()

	return len(cl.cache)
}

// ClearCache removes all cached chains, forcing subsequent loads to
// recompile from source.
func (cl *ChainLoader[C]) ClearCache() {
	cl.cacheMu.Lock()
	defer cl.cacheMu.Unlock()

	cl.cache = make(map[string]*LoadedChain[C])
}
