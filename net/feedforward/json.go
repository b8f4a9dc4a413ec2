package feedforward

import "compress/zlib"
import "encoding/json"
import "fmt"
import "io"
import "math"
import "os"
import "path/filepath"
import "strings"

import "github.com/pkg/errors"
import "gorgonia.org/tensor"

// ErrIncompatibleCheckpoint is returned when a weights file does not match
// the architecture it is loaded into.
var ErrIncompatibleCheckpoint = errors.New("incompatible checkpoint")

// ErrNonFiniteWeights is returned when a parameter holds NaN or an infinity,
// which the weights format cannot represent.
var ErrNonFiniteWeights = errors.New("non-finite weights")

// DecodeError is an undecodable weights file. It matches
// ErrIncompatibleCheckpoint and unwraps to the decoder's error.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return ErrIncompatibleCheckpoint.Error() + ": " + e.Err.Error()
}

func (e *DecodeError) Is(target error) bool { return target == ErrIncompatibleCheckpoint }

func (e *DecodeError) Unwrap() error { return e.Err }

const weightsFormat = "segmentation.weights/v1"

type weightsFile struct {
	Format      string        `json:"format"`
	Fingerprint string        `json:"fingerprint"`
	Params      []paramRecord `json:"params"`
}

type paramRecord struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// Fingerprint identifies the architecture by its parameter names and shapes.
func (f *FeedforwardNetwork) Fingerprint() string {
	var b strings.Builder
	for i, p := range f.Params() {
		if i != 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s%v", p.Name, []int(p.Shape()))
	}
	return b.String()
}

// WriteZlibWeightsToFile writes model weights to a zlib file. The file is
// replaced atomically.
func (f *FeedforwardNetwork) WriteZlibWeightsToFile(name string) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create weights directory")
	}
	file, err := os.CreateTemp(dir, filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := file.Name()
	err = f.WriteZlibWeights(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WriteZlibWeights writes model weights to a writer. It fails with
// ErrNonFiniteWeights when a parameter diverged to NaN or an infinity.
func (f *FeedforwardNetwork) WriteZlibWeights(w io.Writer) error {
	file := weightsFile{
		Format:      weightsFormat,
		Fingerprint: f.Fingerprint(),
	}
	for _, p := range f.Params() {
		for i, v := range p.Data() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrNonFiniteWeights, "parameter %s[%d] is %v", p.Name, i, v)
			}
		}
		file.Params = append(file.Params, paramRecord{
			Name:  p.Name,
			Shape: []int(p.Shape()),
			Data:  p.Data(),
		})
	}
	zw := zlib.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(&file); err != nil {
		zw.Close()
		return errors.Wrap(err, "encode weights")
	}
	return zw.Close()
}

// ReadZlibWeightsFromFile reads model weights from a zlib file
func (f *FeedforwardNetwork) ReadZlibWeightsFromFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	err = f.ReadZlibWeights(file)
	file.Close()
	return err
}

// ReadZlibWeights reads model weights from a reader. Nothing is modified
// unless every parameter in the file matches the network.
func (f *FeedforwardNetwork) ReadZlibWeights(r io.Reader) error {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return &DecodeError{Err: err}
	}
	defer zr.Close()

	var file weightsFile
	if err := json.NewDecoder(zr).Decode(&file); err != nil {
		return &DecodeError{Err: err}
	}
	if file.Format != weightsFormat {
		return errors.Wrapf(ErrIncompatibleCheckpoint, "format %q", file.Format)
	}

	params := f.Params()
	if len(file.Params) != len(params) {
		return errors.Wrapf(ErrIncompatibleCheckpoint, "%d parameters in file, network has %d",
			len(file.Params), len(params))
	}
	for i, p := range params {
		rec := file.Params[i]
		if rec.Name != p.Name {
			return errors.Wrapf(ErrIncompatibleCheckpoint, "parameter %d is %s, network has %s", i, rec.Name, p.Name)
		}
		if !p.Shape().Eq(tensor.Shape(rec.Shape)) || len(rec.Data) != len(p.Data()) {
			return errors.Wrapf(ErrIncompatibleCheckpoint, "parameter %s has shape %v, network has %v",
				p.Name, rec.Shape, p.Shape())
		}
	}
	for i, p := range params {
		copy(p.Data(), file.Params[i].Data)
	}
	return nil
}
