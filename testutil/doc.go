// Package testutil provides testing utilities for knnmon.
//
// This package is intended for use in tests, examples and benchmarks only.
// It provides a seeded RNG for reproducible vectors, labeled cluster datasets
// for kNN accuracy checks, and an exact nearest-neighbour reference.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(100, 128)
//
// # Labeled Clusters
//
//	vectors, labels := rng.LabeledClusters(50, 32, 10, 0.05)
//
// # Exact Neighbours (Ground Truth)
//
//	idx := testutil.ExactTopK(query, vectors, k)
package testutil
