package trainer

import "github.com/neurlang/segmentation/logging"

// WeightsReader restores network weights.
type WeightsReader interface {
	ReadZlibWeightsFromFile(name string) error
}

// Resume loads dstmodel into net when resume is requested. A missing or
// unreadable file is logged and training starts from scratch; it reports
// whether weights were loaded.
func Resume(net WeightsReader, resume bool, dstmodel string, logger logging.Logger) bool {
	if !resume || dstmodel == "" {
		return false
	}
	if err := net.ReadZlibWeightsFromFile(dstmodel); err != nil {
		logging.OrNoOp(logger).Warn("resume failed, starting from scratch", "path", dstmodel, "error", err)
		return false
	}
	return true
}
