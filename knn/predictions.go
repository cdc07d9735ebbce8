package knn

// Predictions holds the classifier output for a batch of queries.
type Predictions struct {
	// Ranks[i] lists all class indices for query i, best first.
	Ranks [][]int
	// Scores[i][c] is the accumulated neighbour weight of class c for query i.
	Scores [][]float64
}

// Len returns the number of queries.
func (p *Predictions) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Ranks)
}

// Top1 returns the best class per query.
func (p *Predictions) Top1() []int {
	out := make([]int, p.Len())
	for i, r := range p.Ranks {
		out[i] = r[0]
	}
	return out
}

// TopN returns the n best classes per query. n is clamped to the class count.
func (p *Predictions) TopN(n int) [][]int {
	n = max(n, 0)
	out := make([][]int, p.Len())
	for i, r := range p.Ranks {
		m := min(n, len(r))
		out[i] = r[:m:m]
	}
	return out
}
