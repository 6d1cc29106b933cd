package service

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/nutristat/internal/models"
)

// ErrUnsupportedForm indicates an operation was called with (or without) a
// state parameter it does not accept.
var ErrUnsupportedForm = errors.New("operation does not support this parameter form")

// Provider computes results for the fixed operation set. Global forms take a
// question; state-scoped forms take a question and a state.
type Provider interface {
	StatesMean(question string) (*models.Result, error)
	StateMean(question, state string) (*models.Result, error)
	Best5(question string) (*models.Result, error)
	Worst5(question string) (*models.Result, error)
	GlobalMean(question string) (*models.Result, error)
	DiffFromMean(question string) (*models.Result, error)
	StateDiffFromMean(question, state string) (*models.Result, error)
	MeanByCategory(question string) (*models.Result, error)
	StateMeanByCategory(question, state string) (*models.Result, error)
}

type (
	globalFunc func(question string) (*models.Result, error)
	scopedFunc func(question, state string) (*models.Result, error)
)

// handler holds the provider entry points for one operation. At most one
// form is set per operation.
type handler struct {
	global globalFunc
	scoped scopedFunc
}

// call picks the scoped form when a state is present, the global form otherwise.
func (h handler) call(params models.Params) (*models.Result, error) {
	if state := params.State(); state != "" {
		if h.scoped == nil {
			return nil, fmt.Errorf("%w: state %q given", ErrUnsupportedForm, state)
		}
		return h.scoped(params.Question(), state)
	}
	if h.global == nil {
		return nil, fmt.Errorf("%w: state required", ErrUnsupportedForm)
	}
	return h.global(params.Question())
}

// newDispatchTable maps every operation to its provider call.
func newDispatchTable(p Provider) map[models.Operation]handler {
	return map[models.Operation]handler{
		models.OpStatesMean:          {global: p.StatesMean},
		models.OpStateMean:           {scoped: p.StateMean},
		models.OpBest5:               {global: p.Best5},
		models.OpWorst5:              {global: p.Worst5},
		models.OpGlobalMean:          {global: p.GlobalMean},
		models.OpDiffFromMean:        {global: p.DiffFromMean},
		models.OpStateDiffFromMean:   {scoped: p.StateDiffFromMean},
		models.OpMeanByCategory:      {global: p.MeanByCategory},
		models.OpStateMeanByCategory: {scoped: p.StateMeanByCategory},
	}
}
