package dispatch

import (
	"context"
	"fmt"
)

// Operation is a single fallible unit of work.
//
// Contract:
//   - Perform must honor ctx cancellation where it blocks.
//   - Implementations may additionally expose Name() string, which is used
//     in logs and failure records.
type Operation[In, Out any] interface {
	Perform(ctx context.Context, in In) (Out, error)
}

// OperationFunc adapts an ordinary function to an Operation.
type OperationFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Perform calls f(ctx, in).
func (f OperationFunc[In, Out]) Perform(ctx context.Context, in In) (Out, error) {
	return f(ctx, in)
}

type namedOperation[In, Out any] struct {
	name string
	op   Operation[In, Out]
}

// Named attaches a name to op for logs and failure records.
func Named[In, Out any](name string, op Operation[In, Out]) Operation[In, Out] {
	return &namedOperation[In, Out]{name: name, op: op}
}

func (n *namedOperation[In, Out]) Perform(ctx context.Context, in In) (Out, error) {
	return n.op.Perform(ctx, in)
}

func (n *namedOperation[In, Out]) Name() string {
	return n.name
}

// Unwrap returns the wrapped operation.
func (n *namedOperation[In, Out]) Unwrap() Operation[In, Out] {
	return n.op
}

// NameOf returns op's Name() when it has one and its dynamic type otherwise.
func NameOf(op any) string {
	if n, ok := op.(interface{ Name() string }); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", op)
}
