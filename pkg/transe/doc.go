// Package transe implements TransE knowledge-graph embedding.
//
// A triplet (h, r, t) is plausible when h + r is close to t. Training
// minimizes the margin ranking loss
//
//	max(0, margin + ||h + r - t|| - ||h' + r - t'||)
//
// between each positive triplet and one corrupted copy produced by Sampler.
// Trainer drives mini-batch epochs over a corpus.Source and checkpoints after
// every epoch; Predictor ranks candidate tails for a (head, relation) pair.
package transe
