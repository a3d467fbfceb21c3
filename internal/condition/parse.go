package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// wireNode mirrors the JSON stored in the catalog's 'condition' column.
// Examples:
//   - {"type":"METRIC_THRESHOLD","metric":"postsPublished","op":">=","value":5}
//   - {"type":"FLAG","field":"emailVerified","expected":true}
//   - {"type":"DATE_WINDOW","field":"registeredAt","withinDays":30}
//   - {"type":"AND","children":[...]}
type wireNode struct {
	Type       Type        `json:"type"`
	Metric     string      `json:"metric,omitempty"`
	Op         Op          `json:"op,omitempty"`
	Value      json.Number `json:"value,omitempty"`
	Field      string      `json:"field,omitempty"`
	Expected   *bool       `json:"expected,omitempty"`
	WithinDays *int        `json:"withinDays,omitempty"`
	Children   []wireNode  `json:"children,omitempty"`
}

// Parse decodes and validates a condition tree from its JSON form.
func Parse(raw []byte) (Node, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty condition", ErrMalformed)
	}
	var w wireNode
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrMalformed, err)
	}
	return w.toNode("$")
}

// Marshal encodes a tree into its JSON form. The tree is validated first.
func Marshal(node Node) ([]byte, error) {
	if err := Validate(node); err != nil {
		return nil, err
	}
	w, err := fromNode(node)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// Validate checks the structural invariants of a tree built in code:
// AND/OR have at least one child, NOT exactly one, leaves are fully specified.
func Validate(node Node) error {
	return validate(node, "$")
}

func validate(node Node, path string) error {
	switch n := node.(type) {
	case MetricThreshold:
		if n.Metric == "" {
			return fmt.Errorf("%w: %s: metric is required", ErrMalformed, path)
		}
		if !n.Op.Valid() {
			return fmt.Errorf("%w: %s: unsupported operator %q", ErrMalformed, path, n.Op)
		}
		if n.Value.Kind != KindInt && n.Value.Kind != KindFloat {
			return fmt.Errorf("%w: %s: threshold value is required", ErrMalformed, path)
		}
	case Flag:
		if n.Field == "" {
			return fmt.Errorf("%w: %s: field is required", ErrMalformed, path)
		}
	case DateWindow:
		if n.Field == "" {
			return fmt.Errorf("%w: %s: field is required", ErrMalformed, path)
		}
		if n.WithinDays < 0 {
			return fmt.Errorf("%w: %s: withinDays must not be negative", ErrMalformed, path)
		}
	case And:
		return validateChildren(TypeAnd, n.Children, path)
	case Or:
		return validateChildren(TypeOr, n.Children, path)
	case Not:
		if n.Child == nil {
			return fmt.Errorf("%w: %s: NOT requires exactly one child", ErrMalformed, path)
		}
		return validate(n.Child, path+".children[0]")
	case nil:
		return fmt.Errorf("%w: %s: nil node", ErrMalformed, path)
	default:
		return fmt.Errorf("%w: %s: unsupported node %T", ErrMalformed, path, node)
	}
	return nil
}

func validateChildren(t Type, children []Node, path string) error {
	if len(children) == 0 {
		return fmt.Errorf("%w: %s: %s requires at least one child", ErrMalformed, path, t)
	}
	for i, c := range children {
		if err := validate(c, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (w *wireNode) toNode(path string) (Node, error) {
	switch w.Type {
	case TypeMetricThreshold:
		if len(w.Children) > 0 {
			return nil, fmt.Errorf("%w: %s: leaf must not have children", ErrMalformed, path)
		}
		value, err := parseMetric(w.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
		}
		n := MetricThreshold{Metric: w.Metric, Op: w.Op, Value: value}
		return n, validate(n, path)

	case TypeFlag:
		if len(w.Children) > 0 {
			return nil, fmt.Errorf("%w: %s: leaf must not have children", ErrMalformed, path)
		}
		if w.Expected == nil {
			return nil, fmt.Errorf("%w: %s: expected is required", ErrMalformed, path)
		}
		n := Flag{Field: w.Field, Expected: *w.Expected}
		return n, validate(n, path)

	case TypeDateWindow:
		if len(w.Children) > 0 {
			return nil, fmt.Errorf("%w: %s: leaf must not have children", ErrMalformed, path)
		}
		if w.WithinDays == nil {
			return nil, fmt.Errorf("%w: %s: withinDays is required", ErrMalformed, path)
		}
		n := DateWindow{Field: w.Field, WithinDays: *w.WithinDays}
		return n, validate(n, path)

	case TypeAnd, TypeOr:
		if len(w.Children) == 0 {
			return nil, fmt.Errorf("%w: %s: %s requires at least one child", ErrMalformed, path, w.Type)
		}
		children := make([]Node, len(w.Children))
		for i := range w.Children {
			c, err := w.Children[i].toNode(fmt.Sprintf("%s.children[%d]", path, i))
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		if w.Type == TypeAnd {
			return And{Children: children}, nil
		}
		return Or{Children: children}, nil

	case TypeNot:
		if len(w.Children) != 1 {
			return nil, fmt.Errorf("%w: %s: NOT requires exactly one child, got %d", ErrMalformed, path, len(w.Children))
		}
		c, err := w.Children[0].toNode(path + ".children[0]")
		if err != nil {
			return nil, err
		}
		return Not{Child: c}, nil

	default:
		return nil, fmt.Errorf("%w: %s: unknown condition type %q", ErrMalformed, path, w.Type)
	}
}

func fromNode(node Node) (wireNode, error) {
	switch n := node.(type) {
	case MetricThreshold:
		return wireNode{Type: TypeMetricThreshold, Metric: n.Metric, Op: n.Op, Value: formatMetric(n.Value)}, nil
	case Flag:
		expected := n.Expected
		return wireNode{Type: TypeFlag, Field: n.Field, Expected: &expected}, nil
	case DateWindow:
		days := n.WithinDays
		return wireNode{Type: TypeDateWindow, Field: n.Field, WithinDays: &days}, nil
	case And:
		return fromChildren(TypeAnd, n.Children)
	case Or:
		return fromChildren(TypeOr, n.Children)
	case Not:
		return fromChildren(TypeNot, []Node{n.Child})
	default:
		return wireNode{}, fmt.Errorf("%w: unsupported node %T", ErrMalformed, node)
	}
}

func fromChildren(t Type, children []Node) (wireNode, error) {
	w := wireNode{Type: t, Children: make([]wireNode, len(children))}
	for i, c := range children {
		cw, err := fromNode(c)
		if err != nil {
			return wireNode{}, err
		}
		w.Children[i] = cw
	}
	return w, nil
}

// parseMetric keeps the literal's kind: "5" is an integer, "5.0" or "5e0" a float.
func parseMetric(n json.Number) (Metric, error) {
	s := n.String()
	if s == "" {
		return Metric{}, fmt.Errorf("threshold value is required")
	}
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return Metric{}, fmt.Errorf("invalid float threshold %q: %v", s, err)
		}
		return Float(f), nil
	}
	i, err := n.Int64()
	if err != nil {
		return Metric{}, fmt.Errorf("invalid integer threshold %q: %v", s, err)
	}
	return Int(i), nil
}

func formatMetric(m Metric) json.Number {
	if m.Kind == KindFloat {
		s := strconv.FormatFloat(m.float, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return json.Number(s)
	}
	return json.Number(strconv.FormatInt(m.int, 10))
}
