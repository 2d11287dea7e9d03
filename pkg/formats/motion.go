package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrUnsupportedFormat is returned when a file extension does not match any
// format this package knows how to read or write.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ReadMotion loads a recorded motion as a [frames x nQ] matrix.
//
// Native motion files are NPY arrays already shaped [frames x nQ]. The two
// legacy reconstruction formats (.q1 from a linear-driver pass, .q2 from a
// Kalman pass) are MAT-files storing the matrix as [nQ x frames] under the
// variables Q1 and Q2; those are transposed on load so every caller sees the
// same logical shape.
func ReadMotion(path string) (*mat.Dense, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		return ReadNPY(path)
	case ".q1":
		return readTransposed(path, "Q1")
	case ".q2":
		return readTransposed(path, "Q2")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func readTransposed(path, name string) (*mat.Dense, error) {
	m, err := ReadMATMatrix(path, name)
	if err != nil {
		return nil, err
	}
	rows, cols := m.Dims()
	out := mat.NewDense(cols, rows, nil)
	out.Copy(m.T())
	return out, nil
}
