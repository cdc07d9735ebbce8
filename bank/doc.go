// Package bank builds and holds the kNN feature bank.
//
// A FeatureBank is an immutable D×N matrix of L2-normalized reference
// embeddings (one sample per column) with a parallel label vector. The Builder
// produces a fresh bank by running a frozen Encoder over a reference Source,
// and the Holder publishes it to readers.
//
// # State Machine
//
// A Holder is either AwaitingFirstBank or Ready. Consumers switch on the
// state instead of probing for a bank:
//
//	switch st := holder.State().(type) {
//	case bank.AwaitingFirstBank:
//	    // skip kNN evaluation
//	case bank.Ready:
//	    fb := st.Bank()
//	    ...
//	}
//
// # Concurrency
//
// Publish swaps a single pointer to an immutable bank, so features and labels
// are replaced together and readers never observe a partially built bank.
package bank
