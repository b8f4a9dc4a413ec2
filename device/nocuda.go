//go:build !cuda

package device

func probe() Policy {
	return Host{}
}
