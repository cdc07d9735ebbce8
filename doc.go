// Package knnmon monitors self-supervised training with a weighted kNN
// classifier over a per-epoch feature bank.
//
// At the end of every training epoch a frozen copy of the encoder is run over a
// labeled reference set. The L2-normalized embeddings form the feature bank, a
// D×N matrix with one label per column. During validation each query embedding
// is compared to the bank by cosine similarity, the k most similar columns vote
// for their label with weight exp(s/t), and the class with the highest score is
// the prediction. Top-1 accuracy over the validation pass is logged as
// kNN_accuracy; the best value is kept as MaxAccuracy.
//
// # Quick Start
//
//	mon, _ := knnmon.New(encoder, reference,
//	    knnmon.WithClasses(10),
//	    knnmon.WithKNN(200, 0.1),
//	)
//	defer mon.Close()
//
//	// framework hooks
//	mon.ValidationStep(ctx, batch)       // skipped until the first bank exists
//	mon.ValidationEpochEnd(ctx)
//	mon.TrainingEpochEnd(ctx)            // rebuild and publish the bank
//
// # Lifecycle
//
// The monitor starts in bank.AwaitingFirstBank. Every TrainingEpochEnd
// replaces the bank wholesale; readers always observe a complete bank and label
// vector. Close discards the bank.
//
// # Persistence
//
// WithSnapshots writes every published bank to a blobstore.Store (local
// directory, S3 or MinIO) so that Restore can resume a run in the Ready state.
//
// # Training
//
// Package byol implements the online/target training step with an EMA target
// update. Monitor.Fit drives a Learner and the hooks in framework order.
package knnmon
