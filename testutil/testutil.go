package testutil

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// RNG is a seeded, mutex-guarded random source for reproducible test data.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64())
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// UniformRangeVectors generates random vectors with values in range [-1, 1).
func (r *RNG) UniformRangeVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()*2 - 1
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVectors generates L2-normalized random vectors (on the hypersphere).
// Uses Gaussian distribution for uniform distribution on the sphere.
func (r *RNG) UnitVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		r.unitLocked(vec)
		vectors[i] = vec
	}

	return vectors
}

func (r *RNG) unitLocked(vec []float32) {
	var norm float64
	for j := range vec {
		v := r.rand.NormFloat64()
		vec[j] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		norm = 1
	}
	inv := float32(1.0 / math.Sqrt(norm))
	for j := range vec {
		vec[j] *= inv
	}
}

// ClusteredVectors generates vectors clustered around random unit centroids.
// Vector i belongs to cluster i%clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float32) [][]float32 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)

	for i := range num {
		centroid := centroids[i%clusters]
		vec := data[i*dim : (i+1)*dim]
		for j := range dim {
			vec[j] = centroid[j] + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
	}

	return vectors
}

// LabeledClusters generates perClass vectors for each of classes clusters and
// returns them with their cluster index as label. Samples are interleaved
// (label i%classes), so any prefix of the result covers every class evenly.
func (r *RNG) LabeledClusters(perClass, dim, classes int, spread float32) ([][]float32, []int) {
	num := perClass * classes
	vectors := r.ClusteredVectors(num, dim, classes, spread)
	labels := make([]int, num)
	for i := range labels {
		labels[i] = i % classes
	}
	return vectors, labels
}

// ExactTopK returns the indices of the k vectors with the highest dot product
// with query, best first. Ties are broken by lower index.
func ExactTopK(query []float32, vectors [][]float32, k int) []int {
	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, len(vectors))
	for i, v := range vectors {
		var s float64
		for j := range v {
			s += float64(query[j]) * float64(v[j])
		}
		all[i] = scored{idx: i, score: s}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	k = min(k, len(all))
	out := make([]int, k)
	for i := range k {
		out[i] = all[i].idx
	}
	return out
}
