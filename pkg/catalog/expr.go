package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/requirement"
)

// ErrExpression is wrapped by every requirement expression parse error.
var ErrExpression = errors.New("invalid requirement expression")

// Expr holds a requirement expression as written in YAML. An empty Expr
// means the requirement is always met.
type Expr struct {
	node *yaml.Node
}

func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	e.node = node
	return nil
}

// IsZero reports whether the expression was omitted.
func (e Expr) IsZero() bool { return e.node == nil }

// Parse converts the YAML form into a requirement. Omitted expressions
// parse to requirement.Always.
func (e Expr) Parse() (requirement.Requirement, error) {
	if e.node == nil {
		return requirement.Always, nil
	}
	return parseExpr(e.node)
}

// ParseExpr parses an expression from its YAML text, e.g.
// "{any: [{item: flippers}, {break: fake_flipper}]}".
func ParseExpr(text string) (requirement.Requirement, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExpression, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, fmt.Errorf("%w: empty", ErrExpression)
	}
	return parseExpr(doc.Content[0])
}

func exprErr(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrExpression, node.Line, fmt.Sprintf(format, args...))
}

func parseExpr(node *yaml.Node) (requirement.Requirement, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		level, err := access.ParseLevel(node.Value)
		if err != nil || level == access.Partial || level == access.Cleared {
			return nil, exprErr(node, "unknown static level %q", node.Value)
		}
		return requirement.Static{Level: level}, nil

	case yaml.SequenceNode:
		// A bare list is an aggregate.
		children, err := parseList(node)
		if err != nil {
			return nil, err
		}
		return requirement.All{Children: children}, nil

	case yaml.MappingNode:
		return parseMapping(node)

	case yaml.AliasNode:
		return parseExpr(node.Alias)

	default:
		return nil, exprErr(node, "unexpected node")
	}
}

func parseList(node *yaml.Node) ([]requirement.Requirement, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, exprErr(node, "expected a list")
	}
	out := make([]requirement.Requirement, 0, len(node.Content))
	for _, c := range node.Content {
		r, err := parseExpr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseMapping(node *yaml.Node) (requirement.Requirement, error) {
	fields := make(map[string]*yaml.Node, len(node.Content)/2)
	var keys []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i].Value
		if _, dup := fields[k]; dup {
			return nil, exprErr(node.Content[i], "duplicate key %q", k)
		}
		fields[k] = node.Content[i+1]
		keys = append(keys, k)
	}

	only := func(allowed ...string) error {
		for _, k := range keys {
			if !slices.Contains(allowed, k) {
				return exprErr(node, "unexpected key %q next to %q", k, allowed[0])
			}
		}
		return nil
	}
	scalar := func(key string) (string, error) {
		v := fields[key]
		if v.Kind != yaml.ScalarNode || v.Value == "" {
			return "", exprErr(v, "%s must be a non-empty scalar", key)
		}
		return v.Value, nil
	}
	number := func(key string) (int, error) {
		v := fields[key]
		n, err := strconv.Atoi(v.Value)
		if v.Kind != yaml.ScalarNode || err != nil || n < 0 {
			return 0, exprErr(v, "%s must be a non-negative integer", key)
		}
		return n, nil
	}

	switch {
	case fields["all"] != nil:
		if err := only("all"); err != nil {
			return nil, err
		}
		children, err := parseList(fields["all"])
		if err != nil {
			return nil, err
		}
		return requirement.All{Children: children}, nil

	case fields["any"] != nil:
		if err := only("any"); err != nil {
			return nil, err
		}
		children, err := parseList(fields["any"])
		if err != nil {
			return nil, err
		}
		return requirement.Any{Children: children}, nil

	case fields["item"] != nil:
		if err := only("item", "min", "exact"); err != nil {
			return nil, err
		}
		name, err := scalar("item")
		if err != nil {
			return nil, err
		}
		if fields["min"] != nil && fields["exact"] != nil {
			return nil, exprErr(node, "item %s: min and exact are exclusive", name)
		}
		if fields["exact"] != nil {
			n, err := number("exact")
			if err != nil {
				return nil, err
			}
			return requirement.Exactly(name, n), nil
		}
		n := 1
		if fields["min"] != nil {
			if n, err = number("min"); err != nil {
				return nil, err
			}
		}
		return requirement.AtLeast(name, n), nil

	case fields["setting"] != nil:
		if err := only("setting", "is"); err != nil {
			return nil, err
		}
		if fields["is"] == nil {
			return nil, exprErr(node, "setting needs an is: value")
		}
		name, err := scalar("setting")
		if err != nil {
			return nil, err
		}
		// Read the raw scalar so that on/off stay strings.
		value, err := scalar("is")
		if err != nil {
			return nil, err
		}
		return requirement.Setting{Name: name, Value: value}, nil

	case fields["break"] != nil:
		if err := only("break"); err != nil {
			return nil, err
		}
		name, err := scalar("break")
		if err != nil {
			return nil, err
		}
		return requirement.SequenceBreak{Name: name}, nil

	case fields["complex"] != nil:
		if err := only("complex"); err != nil {
			return nil, err
		}
		name, err := scalar("complex")
		if err != nil {
			return nil, err
		}
		return requirement.Complex{Name: name}, nil

	case fields["crystals"] != nil:
		if err := only("crystals"); err != nil {
			return nil, err
		}
		n, err := number("crystals")
		if err != nil {
			return nil, err
		}
		return requirement.Prize{Kind: requirement.Crystals, Count: n}, nil

	case fields["pendants"] != nil:
		if err := only("pendants"); err != nil {
			return nil, err
		}
		n, err := number("pendants")
		if err != nil {
			return nil, err
		}
		return requirement.Prize{Kind: requirement.Pendants, Count: n}, nil

	case fields["reach"] != nil:
		if err := only("reach"); err != nil {
			return nil, err
		}
		name, err := scalar("reach")
		if err != nil {
			return nil, err
		}
		return requirement.Reach{Node: name}, nil
	}

	return nil, exprErr(node, "unknown expression with keys %v", keys)
}

// FormatExpr renders a requirement in the flow style accepted by ParseExpr.
func FormatExpr(req requirement.Requirement) string {
	var b strings.Builder
	formatExpr(&b, req)
	return b.String()
}

func formatExpr(b *strings.Builder, req requirement.Requirement) {
	list := func(key string, children []requirement.Requirement) {
		b.WriteString("{" + key + ": [")
		for i, c := range children {
			if i > 0 {
				b.WriteString(", ")
			}
			formatExpr(b, c)
		}
		b.WriteString("]}")
	}

	switch v := req.(type) {
	case requirement.Static:
		b.WriteString(v.Level.String())
	case requirement.Setting:
		fmt.Fprintf(b, "{setting: %s, is: %q}", v.Name, v.Value)
	case requirement.Item:
		if v.Exact {
			fmt.Fprintf(b, "{item: %s, exact: %d}", v.Name, v.Count)
		} else {
			fmt.Fprintf(b, "{item: %s, min: %d}", v.Name, v.Count)
		}
	case requirement.Prize:
		fmt.Fprintf(b, "{%s: %d}", v.Kind, v.Count)
	case requirement.SequenceBreak:
		fmt.Fprintf(b, "{break: %s}", v.Name)
	case requirement.All:
		list("all", v.Children)
	case requirement.Any:
		list("any", v.Children)
	case requirement.Complex:
		fmt.Fprintf(b, "{complex: %s}", v.Name)
	case requirement.Reach:
		fmt.Fprintf(b, "{reach: %s}", v.Node)
	default:
		panic(fmt.Sprintf("catalog: unknown requirement variant %T", req))
	}
}
