package application

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// hclChainFile is the top-level structure of an HCL chain document:
//
//	version = "1.0.0"
//	metadata { name = "doubler" }
//	node "source" {
//	  blueprint = "constant"
//	  params    = { value = 3 }
//	}
//	link {
//	  from = "source.out"
//	  to   = "twice.in"
//	}
type hclChainFile struct {
	Version  string       `hcl:"version"`
	Metadata *hclMetadata `hcl:"metadata,block"`
	Nodes    []*hclNode   `hcl:"node,block"`
	Links    []*hclLink   `hcl:"link,block"`
	Required []string     `hcl:"required,optional"`
	Run      *hclRun      `hcl:"run,block"`
}

type hclMetadata struct {
	Name        string            `hcl:"name"`
	Description string            `hcl:"description,optional"`
	Tags        []string          `hcl:"tags,optional"`
	Labels      map[string]string `hcl:"labels,optional"`
}

type hclNode struct {
	ID            string    `hcl:"id,label"`
	Blueprint     string    `hcl:"blueprint"`
	Configuration *int      `hcl:"configuration,optional"`
	Params        cty.Value `hcl:"params,optional"`
	Inputs        cty.Value `hcl:"inputs,optional"`
}

type hclLink struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type hclRun struct {
	Policy      string `hcl:"policy,optional"`
	MaxPasses   int    `hcl:"max_passes,optional"`
	MaxAttempts int    `hcl:"max_attempts,optional"`
	Fuel        int64  `hcl:"fuel,optional"`
}

// parseHCL decodes an HCL chain document into the same ChainConfig a YAML
// document produces.
func parseHCL(filename string, data []byte) (*ChainConfig, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclChainFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	config := &ChainConfig{
		Version:  parsed.Version,
		Required: parsed.Required,
	}
	if parsed.Metadata != nil {
		config.Metadata = Metadata{
			Name:        parsed.Metadata.Name,
			Description: parsed.Metadata.Description,
			Tags:        parsed.Metadata.Tags,
			Labels:      parsed.Metadata.Labels,
		}
	}
	if parsed.Run != nil {
		config.Run = RunConfig{
			Policy:      parsed.Run.Policy,
			MaxPasses:   parsed.Run.MaxPasses,
			MaxAttempts: parsed.Run.MaxAttempts,
			Fuel:        parsed.Run.Fuel,
		}
	}

	for _, n := range parsed.Nodes {
		params, err := ctyToMap(n.Params)
		if err != nil {
			return nil, fmt.Errorf("node %s params: %w", n.ID, err)
		}
		inputs, err := ctyToMap(n.Inputs)
		if err != nil {
			return nil, fmt.Errorf("node %s inputs: %w", n.ID, err)
		}
		config.Nodes = append(config.Nodes, NodeConfig{
			ID:            n.ID,
			Blueprint:     n.Blueprint,
			Configuration: n.Configuration,
			Params:        params,
			Inputs:        inputs,
		})
	}
	for _, l := range parsed.Links {
		config.Links = append(config.Links, LinkConfig{From: l.From, To: l.To})
	}
	return config, nil
}

// ctyToMap converts an object or map value into map[string]any. A null or
// absent value yields nil.
func ctyToMap(v cty.Value) (map[string]any, error) {
	native, err := ctyToGo(v)
	if err != nil {
		return nil, err
	}
	if native == nil {
		return nil, nil
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	return m, nil
}

// ctyToGo recursively converts a cty.Value into the values YAML decoding
// produces: integral numbers become int, other numbers float64.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		f, _ := bf.Float64()
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToGo(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToGo(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
