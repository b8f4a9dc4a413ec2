// Package main provides a demo program for running inference with a trained nuclei
// segmentation network. It predicts synthetic images and logs, per output, the mean
// prediction and the share of pixels above 0.5.
//
// The gorgonia tensor stack imports go4.org/unsafe/assume-no-moving-gc, whose
// older releases panic at init on Go versions they predate. go.mod pins a
// release that accepts current toolchains; if an older one is selected, run with
// ASSUME_NO_MOVING_GC_UNSAFE_RISK_IT_WITH set to the toolchain version, for
// example go1.22.
package main
