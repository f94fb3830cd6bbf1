package condition

// Condition decides whether a subject is accepted.
//
// Contract:
//   - Accept must be free of side effects and must not panic.
//   - Absence of a capability or configuration key yields false.
type Condition[S any] interface {
	Accept(subject S) bool
}

// Func adapts an ordinary function to a Condition.
type Func[S any] func(subject S) bool

// Accept calls f(subject).
func (f Func[S]) Accept(subject S) bool {
	return f(subject)
}

// AndCondition accepts when every child accepts.
type AndCondition[S any] struct {
	conditions []Condition[S]
}

// And returns a condition that accepts only if all conditions accept.
// Evaluation stops at the first rejecting child. An empty And accepts.
func And[S any](conditions ...Condition[S]) *AndCondition[S] {
	return &AndCondition[S]{conditions: compact(conditions)}
}

// Accept implements Condition.
func (c *AndCondition[S]) Accept(subject S) bool {
	for _, cond := range c.conditions {
		if !cond.Accept(subject) {
			return false
		}
	}
	return true
}

// And returns a new AndCondition with more appended after the current
// children.
func (c *AndCondition[S]) And(more ...Condition[S]) *AndCondition[S] {
	all := make([]Condition[S], 0, len(c.conditions)+len(more))
	all = append(all, c.conditions...)
	all = append(all, more...)
	return And(all...)
}

// OrCondition accepts when at least one child accepts.
type OrCondition[S any] struct {
	conditions []Condition[S]
}

// Or returns a condition that accepts if any condition accepts.
// Evaluation stops at the first accepting child. An empty Or rejects.
func Or[S any](conditions ...Condition[S]) *OrCondition[S] {
	return &OrCondition[S]{conditions: compact(conditions)}
}

// Accept implements Condition.
func (c *OrCondition[S]) Accept(subject S) bool {
	for _, cond := range c.conditions {
		if cond.Accept(subject) {
			return true
		}
	}
	return false
}

// NotCondition inverts its child.
type NotCondition[S any] struct {
	condition Condition[S]
}

// Not returns a condition that accepts when c rejects.
func Not[S any](c Condition[S]) *NotCondition[S] {
	return &NotCondition[S]{condition: c}
}

// Accept implements Condition. A Not over a nil condition accepts.
func (c *NotCondition[S]) Accept(subject S) bool {
	if c.condition == nil {
		return true
	}
	return !c.condition.Accept(subject)
}

// Fixed always returns the same answer.
type Fixed[S any] bool

// Accept implements Condition.
func (f Fixed[S]) Accept(S) bool {
	return bool(f)
}

// Always returns a condition that accepts every subject.
func Always[S any]() Condition[S] {
	return Fixed[S](true)
}

// Never returns a condition that rejects every subject.
func Never[S any]() Condition[S] {
	return Fixed[S](false)
}

func compact[S any](conditions []Condition[S]) []Condition[S] {
	out := make([]Condition[S], 0, len(conditions))
	for _, c := range conditions {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
