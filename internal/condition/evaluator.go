package condition

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is returned for trees violating the structural invariants.
	ErrMalformed = errors.New("malformed condition")

	// ErrUnknownMetric is returned when a threshold references a metric missing from the snapshot.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrUnknownField is returned when a leaf references a profile field missing from the snapshot.
	ErrUnknownField = errors.New("unknown profile field")

	// ErrKindMismatch is returned when a metric and its threshold have different numeric kinds.
	ErrKindMismatch = errors.New("metric kind mismatch")
)

// IsConfigError reports whether err stems from badge configuration rather than I/O.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrUnknownMetric) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrKindMismatch)
}

// Evaluate reports whether the input satisfies the tree rooted at node.
// It never performs I/O and is safe for concurrent use.
func Evaluate(node Node, in Input) (bool, error) {
	if in.Data == nil {
		return false, errors.New("condition: nil user data")
	}
	return eval(node, in)
}

func eval(node Node, in Input) (bool, error) {
	switch n := node.(type) {
	case MetricThreshold:
		return evalThreshold(n, in.Data.Metrics)
	case Flag:
		v, ok := in.Data.Profile.Flags[n.Field]
		if !ok {
			return false, fmt.Errorf("%w: %q", ErrUnknownField, n.Field)
		}
		return v == n.Expected, nil
	case DateWindow:
		return evalDateWindow(n, in)
	case And:
		if len(n.Children) == 0 {
			return false, fmt.Errorf("%w: AND without children", ErrMalformed)
		}
		for _, c := range n.Children {
			ok, err := eval(c, in)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		if len(n.Children) == 0 {
			return false, fmt.Errorf("%w: OR without children", ErrMalformed)
		}
		for _, c := range n.Children {
			ok, err := eval(c, in)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		if n.Child == nil {
			return false, fmt.Errorf("%w: NOT without child", ErrMalformed)
		}
		ok, err := eval(n.Child, in)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case nil:
		return false, fmt.Errorf("%w: nil node", ErrMalformed)
	default:
		// Only pointer variants of the sealed kinds can reach this branch.
		return false, fmt.Errorf("%w: unsupported node %T", ErrMalformed, node)
	}
}

func evalThreshold(n MetricThreshold, metrics UserMetrics) (bool, error) {
	if !n.Op.Valid() {
		return false, fmt.Errorf("%w: unsupported operator %q", ErrMalformed, n.Op)
	}
	got, ok := metrics[n.Metric]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownMetric, n.Metric)
	}
	if got.Kind != n.Value.Kind {
		return false, fmt.Errorf("%w: %q is %s, threshold is %s", ErrKindMismatch, n.Metric, got.Kind, n.Value.Kind)
	}

	switch got.Kind {
	case KindInt:
		return compare(n.Op, got.int, n.Value.int), nil
	case KindFloat:
		return compare(n.Op, got.float, n.Value.float), nil
	default:
		return false, fmt.Errorf("%w: metric %q has no kind", ErrMalformed, n.Metric)
	}
}

func compare[T int64 | float64](op Op, got, want T) bool {
	switch op {
	case OpGTE:
		return got >= want
	case OpGT:
		return got > want
	case OpEQ:
		return got == want
	case OpLTE:
		return got <= want
	case OpLT:
		return got < want
	}
	return false
}

func evalDateWindow(n DateWindow, in Input) (bool, error) {
	if n.WithinDays < 0 {
		return false, fmt.Errorf("%w: negative window for %q", ErrMalformed, n.Field)
	}
	v, ok := in.Data.Profile.Dates[n.Field]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownField, n.Field)
	}
	if v == nil {
		return false, nil
	}
	// Calendar arithmetic: a Duration overflows past ~292 years.
	return !v.Before(in.Now.AddDate(0, 0, -n.WithinDays)), nil
}
