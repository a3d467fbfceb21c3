// Package condition implements the badge condition trees and their evaluation.
//
// A condition is a closed sum type: the Node interface is sealed by an unexported
// method, so only the node kinds declared in this file exist. Evaluation is a pure
// function of the tree and a UserContextData snapshot; it performs no I/O.
package condition

// Type is the wire discriminator of a node.
type Type string

const (
	TypeMetricThreshold Type = "METRIC_THRESHOLD"
	TypeFlag            Type = "FLAG"
	TypeDateWindow      Type = "DATE_WINDOW"
	TypeAnd             Type = "AND"
	TypeOr              Type = "OR"
	TypeNot             Type = "NOT"
)

// Op is a comparison operator for METRIC_THRESHOLD leaves.
type Op string

const (
	OpGTE Op = ">="
	OpGT  Op = ">"
	OpEQ  Op = "=="
	OpLTE Op = "<="
	OpLT  Op = "<"
)

// Valid reports whether o is a supported operator.
func (o Op) Valid() bool {
	switch o {
	case OpGTE, OpGT, OpEQ, OpLTE, OpLT:
		return true
	}
	return false
}

// Node is a condition tree node. Implementations: MetricThreshold, Flag, DateWindow,
// And, Or, Not.
type Node interface {
	// Type returns the wire discriminator.
	Type() Type
	sealed()
}

// MetricThreshold compares a named metric against a constant.
type MetricThreshold struct {
	Metric string
	Op     Op
	Value  Metric
}

// Flag compares a boolean profile field against the expected value.
type Flag struct {
	Field    string
	Expected bool
}

// DateWindow holds when a profile date lies within WithinDays of the evaluation time.
type DateWindow struct {
	Field      string
	WithinDays int
}

// And holds when every child holds. It must have at least one child.
type And struct {
	Children []Node
}

// Or holds when any child holds. It must have at least one child.
type Or struct {
	Children []Node
}

// Not negates its single child.
type Not struct {
	Child Node
}

func (MetricThreshold) Type() Type { return TypeMetricThreshold }
func (Flag) Type() Type            { return TypeFlag }
func (DateWindow) Type() Type      { return TypeDateWindow }
func (And) Type() Type             { return TypeAnd }
func (Or) Type() Type              { return TypeOr }
func (Not) Type() Type             { return TypeNot }

func (MetricThreshold) sealed() {}
func (Flag) sealed()            {}
func (DateWindow) sealed()      {}
func (And) sealed()             {}
func (Or) sealed()              {}
func (Not) sealed()             {}

// AllOf builds an And node.
func AllOf(children ...Node) And { return And{Children: children} }

// AnyOf builds an Or node.
func AnyOf(children ...Node) Or { return Or{Children: children} }

// Negate builds a Not node.
func Negate(child Node) Not { return Not{Child: child} }

// AtLeast builds a ">=" integer threshold, the most common badge condition.
func AtLeast(metric string, n int64) MetricThreshold {
	return MetricThreshold{Metric: metric, Op: OpGTE, Value: Int(n)}
}

// Is builds a Flag leaf.
func Is(field string, expected bool) Flag {
	return Flag{Field: field, Expected: expected}
}

// Within builds a DateWindow leaf.
func Within(field string, days int) DateWindow {
	return DateWindow{Field: field, WithinDays: days}
}
