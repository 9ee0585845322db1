package quote

import "context"

// Strategy produces a quote for amountIn of pair.In.
type Strategy interface {
	Quote(ctx context.Context, pair Pair, amountIn uint64) (OperationOutput, error)
}

// StateProvider yields the current protocol state.
type StateProvider interface {
	State(ctx context.Context) (*State, error)
}

// StateFunc adapts a function to StateProvider.
type StateFunc func(ctx context.Context) (*State, error)

func (f StateFunc) State(ctx context.Context) (*State, error) { return f(ctx) }

// Static serves one fixed state.
func Static(s *State) StateProvider {
	return StateFunc(func(context.Context) (*State, error) { return s, nil })
}

// LocalStrategy quotes with the fixed-point engine.
type LocalStrategy struct {
	states StateProvider
}

func NewLocalStrategy(states StateProvider) *LocalStrategy {
	return &LocalStrategy{states: states}
}

func (l *LocalStrategy) Quote(ctx context.Context, pair Pair, amountIn uint64) (OperationOutput, error) {
	if err := ctx.Err(); err != nil {
		return OperationOutput{}, err
	}
	s, err := l.states.State(ctx)
	if err != nil {
		return OperationOutput{}, err
	}
	return s.Compute(pair, amountIn)
}

var (
	_ Strategy = (*LocalStrategy)(nil)
	_ Strategy = (*ReferenceStrategy)(nil)
)
