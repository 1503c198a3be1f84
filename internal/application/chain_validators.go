package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-rune/internal/domain"
)

// nodeIDPattern restricts node ids to identifiers without dots.
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// registerCustomValidators registers the chain-specific validation tags
// semver, nodeid and portref with v.
func registerCustomValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"semver":  validateSemver,
		"nodeid":  validateNodeID,
		"portref": validatePortRef,
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateNodeID validates a node id.
func validateNodeID(fl validator.FieldLevel) bool {
	return nodeIDPattern.MatchString(fl.Field().String())
}

// validatePortRef validates a "node.port" reference whose node part is a
// valid node id.
func validatePortRef(fl validator.FieldLevel) bool {
	node, _, err := domain.ParsePortRef(fl.Field().String())
	return err == nil && nodeIDPattern.MatchString(node)
}

// validateSemantics checks the relationships struct tags cannot express:
// unique node ids, links and requirements that reference declared nodes,
// and inputs that are not both linked and bound. Every problem is
// collected into one domain.ValidationError.
func validateSemantics(config *ChainConfig) error {
	verr := domain.NewValidationError("chain " + config.Metadata.Name)

	nodes := make(map[string]NodeConfig, len(config.Nodes))
	for _, n := range config.Nodes {
		if _, exists := nodes[n.ID]; exists {
			verr.AddError(fmt.Sprintf("duplicate node ID %q", n.ID))
			continue
		}
		nodes[n.ID] = n
	}

	linked := make(map[string]string)
	for _, l := range config.Links {
		fromNode, _, _ := domain.ParsePortRef(l.From)
		toNode, toPort, _ := domain.ParsePortRef(l.To)

		if _, ok := nodes[fromNode]; !ok {
			verr.AddError(fmt.Sprintf("link %s -> %s references non-existent source node %q", l.From, l.To, fromNode))
		}
		to, ok := nodes[toNode]
		if !ok {
			verr.AddError(fmt.Sprintf("link %s -> %s references non-existent target node %q", l.From, l.To, toNode))
			continue
		}
		if prev, dup := linked[l.To]; dup {
			verr.AddError(fmt.Sprintf("input %s is linked from both %s and %s", l.To, prev, l.From))
		}
		linked[l.To] = l.From
		if _, bound := to.Inputs[toPort]; bound {
			verr.AddError(fmt.Sprintf("input %s is both linked and bound to a literal", l.To))
		}
	}

	for _, id := range config.Required {
		if _, ok := nodes[id]; !ok {
			verr.AddError(fmt.Sprintf("required node %q is not declared", id))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
