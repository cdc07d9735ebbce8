// Package knn implements a weighted k-nearest-neighbour classifier over a
// feature bank of L2-normalized embeddings.
//
// For every query row the classifier computes the cosine similarity against all
// bank columns with one matrix product, keeps the k most similar columns,
// weights each neighbour by exp(similarity/temperature) and sums the weights
// per class. Classes are then ranked by descending score.
//
// Ties are broken deterministically: among equal similarities the lower bank
// column wins, among equal class scores the lower class index ranks first.
package knn
