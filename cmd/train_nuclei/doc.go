// Package main provides a demo program for training a nuclei segmentation network on
// synthetic microscopy images. The architecture, losses, optimizer and callbacks come
// from a YAML config; the trained weights are written to -dstmodel.
//
// Usage:
//
//	train_nuclei -config configs/unet_multitask.yaml -dstmodel nuclei.json.zlib
//
// Pass -resume to continue from an existing -dstmodel and -pgo to write a CPU
// profile to default.pgo.
//
// The gorgonia tensor stack imports go4.org/unsafe/assume-no-moving-gc, whose
// older releases panic at init on Go versions they predate. go.mod pins a
// release that accepts current toolchains; if an older one is selected, run with
// ASSUME_NO_MOVING_GC_UNSAFE_RISK_IT_WITH set to the toolchain version, for
// example go1.22.
package main
