// Package byol implements the bootstrap-your-own-latent training step: an
// online network and predictor regress onto the projections of a slowly
// moving target network, which follows the online weights by exponential
// moving average.
//
// Forward and backward passes are delegated to the Network and Optimizer
// implementations; this package only orchestrates one step.
package byol
