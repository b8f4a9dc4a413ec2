// Package trainer drives the epoch and batch loop that fits the segmentation
// network. The Controller owns the training state and hands an immutable
// State snapshot to every Callback; callbacks answer the end of each epoch
// with a Decision instead of mutating shared state.
//
// Built in callbacks cover checkpointing the best weights, early stopping,
// loss monitoring and throughput timing. NewCallbacks builds them from the
// callbacks section of the configuration.
package trainer
