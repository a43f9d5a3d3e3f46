// Package solver searches the active cells and in-plane angles of the
// current refinement step exhaustively. It backs hints and benchmarks.
package solver

import (
	"runtime"
	"sync"

	"orientsearch/pkg/hexgrid"
	"orientsearch/pkg/refinement"
	"orientsearch/pkg/session"
)

// ProgressCallback receives the number of evaluated candidates, the total
// and a short status message
type ProgressCallback func(done, total int, message string)

// Searchable is the part of a session the solver needs. Score must be
// safe for concurrent use; Record is only called from one goroutine.
type Searchable interface {
	Cells() []hexgrid.Cell
	Step() refinement.Step
	Score(c session.Candidate) float64
	Record(c session.Candidate, score float64)
}

// Params controls a search
type Params struct {
	// NumCores is the number of worker goroutines, 0 means runtime.NumCPU()
	NumCores int

	// PsiStride evaluates every PsiStride-th in-plane angle, 0 or 1 means all
	PsiStride int

	// Record stores every evaluated score in the refinement state
	Record bool
}

// Result is the best candidate found
type Result struct {
	Candidate session.Candidate
	Score     float64
	Evaluated int
}

// Solver runs exhaustive searches
type Solver struct {
	params   Params
	progress ProgressCallback
}

// New creates a solver
func New(params Params) *Solver {
	if params.NumCores <= 0 {
		params.NumCores = runtime.NumCPU()
	}
	if params.PsiStride <= 0 {
		params.PsiStride = 1
	}
	return &Solver{params: params}
}

// SetProgressCallback sets a function that receives progress updates
func (s *Solver) SetProgressCallback(cb ProgressCallback) {
	s.progress = cb
}

func (s *Solver) reportProgress(done, total int, message string) {
	if s.progress != nil {
		s.progress(done, total, message)
	}
}

// Search evaluates every (cell, psi step) candidate of the current step and
// returns the best one. Scores are computed in parallel and recorded from
// the calling goroutine only.
func (s *Solver) Search(target Searchable) Result {
	cells := target.Cells()
	step := target.Step()

	var candidates []session.Candidate
	for _, c := range cells {
		for k := 0; k < step.PsiSteps(); k += s.params.PsiStride {
			candidates = append(candidates, session.Candidate{Cell: c, PsiStep: k})
		}
	}
	total := len(candidates)
	if total == 0 {
		return Result{}
	}

	type evaluation struct {
		candidate session.Candidate
		score     float64
	}
	resultChan := make(chan evaluation, s.params.NumCores)

	// Divide the work among available cores
	numCores := s.params.NumCores
	perCore := (total + numCores - 1) / numCores

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		start := c * perCore
		if start >= total {
			break
		}
		end := start + perCore
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(part []session.Candidate) {
			defer wg.Done()
			for _, cand := range part {
				resultChan <- evaluation{candidate: cand, score: target.Score(cand)}
			}
		}(candidates[start:end])
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	best := Result{Score: -2}
	completed := 0
	reportEvery := total/20 + 1
	for res := range resultChan {
		completed++
		if s.params.Record {
			target.Record(res.candidate, res.score)
		}
		if res.score > best.Score || (res.score == best.Score && less(res.candidate, best.Candidate)) {
			best.Candidate = res.candidate
			best.Score = res.score
		}
		if completed%reportEvery == 0 || completed == total {
			s.reportProgress(completed, total, "evaluating candidates")
		}
	}
	best.Evaluated = completed
	return best
}

// less orders candidates so ties resolve the same way on every run
func less(a, b session.Candidate) bool {
	ka, kb := a.Cell.Key(), b.Cell.Key()
	if ka.IsTop != kb.IsTop {
		return ka.IsTop
	}
	if ka.Q != kb.Q {
		return ka.Q < kb.Q
	}
	if ka.R != kb.R {
		return ka.R < kb.R
	}
	return a.PsiStep < b.PsiStep
}
