package model

import "io"
import "os"
import "path/filepath"

import "github.com/pkg/errors"

import "github.com/neurlang/segmentation/device"

// Save persists the model to path. When a model checkpoint callback is
// configured its file, holding the best weights selected during training,
// is copied byte for byte instead of serializing the current weights.
func (m *Model) Save(path string) error {
	if cp := m.cfg.Callbacks.ModelCheckpoint; cp != nil {
		if err := copyFile(cp.Filepath, path); err != nil {
			return errors.Wrap(err, "copy checkpoint")
		}
		m.logger.Info("model saved", "path", path, "from", cp.Filepath)
		return nil
	}
	if err := m.net.WriteZlibWeightsToFile(path); err != nil {
		return errors.Wrap(err, "write weights")
	}
	m.logger.Info("model saved", "path", path)
	return nil
}

// Load switches the model to evaluation mode and overwrites the weights
// from path. The weights are read on the host, then the model is placed on
// the policy's device.
func (m *Model) Load(path string) error {
	m.net.Eval()
	device.Host{}.PlaceModel(m.net)
	if err := m.net.ReadZlibWeightsFromFile(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	m.policy.PlaceModel(m.net)
	m.logger.Info("model loaded", "path", path, "device", m.net.Placement())
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out, err := os.CreateTemp(dir, filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := out.Name()
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}
