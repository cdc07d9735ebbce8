// Package distance provides the vector math used for embedding similarity.
//
// Kernels delegate to gonum's float32 BLAS (blas32), which dispatches to
// assembly on amd64 and arm64.
//
// # Cosine Similarity
//
// Embeddings are L2-normalized once, after which cosine similarity is a plain
// dot product:
//
//	distance.NormalizeL2InPlace(a)
//	distance.NormalizeL2InPlace(b)
//	sim := distance.Dot(a, b) // equals distance.Cosine(a, b)
package distance
