package dataset

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/raphaelgruber/nutristat/internal/models"
)

// accumulator averages valid values. The mean of nothing is NaN.
type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(r Row) {
	if r.Valid {
		a.sum += r.Value
		a.n++
	}
}

func (a accumulator) mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.sum / float64(a.n)
}

// stateMean pairs a state with its mean for one question.
type stateMean struct {
	state string
	mean  float64
}

// Provider answers the job operations against a loaded Dataset.
type Provider struct {
	ds *Dataset
}

// NewProvider creates a provider over ds.
func NewProvider(ds *Dataset) *Provider {
	return &Provider{ds: ds}
}

// ranking returns the per-state means for question in ascending order.
// States whose rows carry no value sort last; ties keep state name order.
func (p *Provider) ranking(question string) []stateMean {
	accs := make(map[string]*accumulator)
	p.ds.rowsFor(question, func(r Row) {
		if r.State == "" {
			return
		}
		a, ok := accs[r.State]
		if !ok {
			a = &accumulator{}
			accs[r.State] = a
		}
		a.add(r)
	})

	out := make([]stateMean, 0, len(accs))
	for state, a := range accs {
		out = append(out, stateMean{state: state, mean: a.mean()})
	}
	sort.Slice(out, func(i, j int) bool {
		mi, mj := out[i].mean, out[j].mean
		switch {
		case math.IsNaN(mi) && math.IsNaN(mj):
			return out[i].state < out[j].state
		case math.IsNaN(mi):
			return false
		case math.IsNaN(mj):
			return true
		case mi != mj:
			return mi < mj
		default:
			return out[i].state < out[j].state
		}
	})
	return out
}

func (p *Provider) globalMean(question string) float64 {
	var a accumulator
	p.ds.rowsFor(question, a.add)
	return a.mean()
}

func (p *Provider) stateMean(question, state string) float64 {
	var a accumulator
	p.ds.rowsFor(question, func(r Row) {
		if r.State == state {
			a.add(r)
		}
	})
	return a.mean()
}

// StatesMean maps every state to its mean, ascending by mean.
func (p *Provider) StatesMean(question string) (*models.Result, error) {
	res := models.NewResult()
	for _, sm := range p.ranking(question) {
		res.Set(sm.state, sm.mean)
	}
	return res, nil
}

// StateMean returns {state: mean}.
func (p *Provider) StateMean(question, state string) (*models.Result, error) {
	return models.NewResult().Set(state, p.stateMean(question, state)), nil
}

// Best5 returns the five best states for question.
func (p *Provider) Best5(question string) (*models.Result, error) {
	return p.topFive(question, true), nil
}

// Worst5 returns the five worst states for question.
func (p *Provider) Worst5(question string) (*models.Result, error) {
	return p.topFive(question, false), nil
}

// topFive takes the first five of the ascending ranking, or the last five
// in descending order.
func (p *Provider) topFive(question string, best bool) *models.Result {
	ranked := p.ranking(question)

	var picked []stateMean
	if takeHead(question, best) {
		picked = ranked[:min(5, len(ranked))]
	} else {
		picked = slices.Clone(ranked[max(0, len(ranked)-5):])
		slices.Reverse(picked)
	}

	res := models.NewResult()
	for _, sm := range picked {
		res.Set(sm.state, sm.mean)
	}
	return res
}

// GlobalMean returns {"global_mean": mean} across every row for question.
func (p *Provider) GlobalMean(question string) (*models.Result, error) {
	return models.NewResult().Set("global_mean", p.globalMean(question)), nil
}

// DiffFromMean maps each state to global mean minus state mean, in
// ascending state-mean order.
func (p *Provider) DiffFromMean(question string) (*models.Result, error) {
	global := p.globalMean(question)
	res := models.NewResult()
	for _, sm := range p.ranking(question) {
		res.Set(sm.state, global-sm.mean)
	}
	return res, nil
}

// StateDiffFromMean returns {state: global mean - state mean}.
func (p *Provider) StateDiffFromMean(question, state string) (*models.Result, error) {
	return models.NewResult().Set(state, p.globalMean(question)-p.stateMean(question, state)), nil
}

// MeanByCategory maps "('state', 'category', 'stratum')" to a mean for every
// state, in dataset state order.
func (p *Provider) MeanByCategory(question string) (*models.Result, error) {
	res := models.NewResult()
	for _, state := range p.ds.states {
		for _, c := range p.categoryMeans(question, state) {
			res.Set(fmt.Sprintf("('%s', '%s', '%s')", state, c.category, c.stratum), c.mean)
		}
	}
	return res, nil
}

// StateMeanByCategory returns {state: {"('category', 'stratum')": mean}}.
func (p *Provider) StateMeanByCategory(question, state string) (*models.Result, error) {
	inner := models.NewResult()
	for _, c := range p.categoryMeans(question, state) {
		inner.Set(fmt.Sprintf("('%s', '%s')", c.category, c.stratum), c.mean)
	}
	return models.NewResult().Set(state, inner), nil
}

type categoryMean struct {
	category string
	stratum  string
	mean     float64
}

// categoryMeans groups the rows of one state by category then stratum, both
// ascending. Rows missing either label are left out.
func (p *Provider) categoryMeans(question, state string) []categoryMean {
	type key struct{ category, stratum string }
	accs := make(map[key]*accumulator)

	p.ds.rowsFor(question, func(r Row) {
		if r.State != state || r.Category == "" || r.Stratum == "" {
			return
		}
		k := key{r.Category, r.Stratum}
		a, ok := accs[k]
		if !ok {
			a = &accumulator{}
			accs[k] = a
		}
		a.add(r)
	})

	out := make([]categoryMean, 0, len(accs))
	for k, a := range accs {
		out = append(out, categoryMean{category: k.category, stratum: k.stratum, mean: a.mean()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].category != out[j].category {
			return out[i].category < out[j].category
		}
		return out[i].stratum < out[j].stratum
	})
	return out
}
