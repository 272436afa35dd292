package compute

import (
	"context"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Computation produces an artifact from run and system params.
// Errors are returned to the caller unmodified and never retried.
type Computation[A any] interface {
	Compute(ctx context.Context, run, sys params.Params) (A, error)
}

// Func adapts a function to a Computation.
type Func[A any] func(ctx context.Context, run, sys params.Params) (A, error)

// Compute calls f.
func (f Func[A]) Compute(ctx context.Context, run, sys params.Params) (A, error) {
	return f(ctx, run, sys)
}
