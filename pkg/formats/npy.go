// Package formats provides parsers for the motion and capture file formats
// accepted by the viewer: NPY matrices, legacy MAT-file matrices and C3D
// motion-capture containers.
package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// NPY format errors.
var (
	ErrInvalidNPYMagic    = errors.New("invalid NPY magic: expected '\\x93NUMPY'")
	ErrUnsupportedNPYType = errors.New("unsupported NPY dtype: expected '<f8' or '<f4'")
	ErrTruncatedNPYData   = errors.New("truncated NPY data")
	ErrNPYNotMatrix       = errors.New("NPY array is not two-dimensional")
)

var npyMagic = []byte("\x93NUMPY")

// ParseNPY parses a NumPy .npy file holding a two-dimensional float array
// and returns it as a dense matrix.
func ParseNPY(data []byte) (*mat.Dense, error) {
	if len(data) < 10 {
		return nil, ErrTruncatedNPYData
	}
	for i, b := range npyMagic {
		if data[i] != b {
			return nil, ErrInvalidNPYMagic
		}
	}

	major := data[6]
	var headerLen int
	var headerStart int
	switch {
	case major == 1:
		headerLen = int(binary.LittleEndian.Uint16(data[8:10]))
		headerStart = 10
	case major >= 2:
		if len(data) < 12 {
			return nil, ErrTruncatedNPYData
		}
		headerLen = int(binary.LittleEndian.Uint32(data[8:12]))
		headerStart = 12
	default:
		return nil, fmt.Errorf("unsupported NPY version %d", major)
	}

	if len(data) < headerStart+headerLen {
		return nil, ErrTruncatedNPYData
	}
	header := string(data[headerStart : headerStart+headerLen])

	descr, err := npyHeaderValue(header, "descr")
	if err != nil {
		return nil, err
	}
	var elemSize int
	switch descr {
	case "<f8":
		elemSize = 8
	case "<f4":
		elemSize = 4
	default:
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedNPYType, descr)
	}

	order, err := npyHeaderValue(header, "fortran_order")
	if err != nil {
		return nil, err
	}
	fortran := order == "True"

	rows, cols, err := npyHeaderShape(header)
	if err != nil {
		return nil, err
	}

	body := data[headerStart+headerLen:]
	if len(body) < rows*cols*elemSize {
		return nil, ErrTruncatedNPYData
	}

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows*cols; i++ {
		var v float64
		off := i * elemSize
		if elemSize == 8 {
			v = math.Float64frombits(binary.LittleEndian.Uint64(body[off:]))
		} else {
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(body[off:])))
		}
		if fortran {
			out.Set(i%rows, i/rows, v)
		} else {
			out.Set(i/cols, i%cols, v)
		}
	}
	return out, nil
}

// ReadNPY reads and parses a .npy file from disk.
func ReadNPY(path string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading NPY file: %w", err)
	}
	m, err := ParseNPY(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// WriteNPY serializes a dense matrix as a version 1.0 .npy file ('<f8',
// C order).
func WriteNPY(path string, m *mat.Dense) error {
	rows, cols := m.Dims()
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Total header (magic through newline) must be a multiple of 64.
	total := len(npyMagic) + 4 + len(header) + 1
	if pad := 64 - total%64; pad != 64 {
		header += strings.Repeat(" ", pad)
	}
	header += "\n"

	buf := make([]byte, 0, len(npyMagic)+4+len(header)+rows*cols*8)
	buf = append(buf, npyMagic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(header)))
	buf = append(buf, header...)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m.At(i, j)))
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

func npyHeaderValue(header, key string) (string, error) {
	idx := strings.Index(header, "'"+key+"'")
	if idx < 0 {
		return "", fmt.Errorf("NPY header is missing %q", key)
	}
	rest := header[idx+len(key)+2:]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return "", fmt.Errorf("malformed NPY header near %q", key)
	}
	rest = strings.TrimLeft(rest[colon+1:], " ")
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return "", fmt.Errorf("malformed NPY header near %q", key)
	}
	return strings.Trim(rest[:end], " '"), nil
}

func npyHeaderShape(header string) (rows, cols int, err error) {
	idx := strings.Index(header, "'shape'")
	if idx < 0 {
		return 0, 0, errors.New("NPY header is missing 'shape'")
	}
	open := strings.Index(header[idx:], "(")
	close_ := strings.Index(header[idx:], ")")
	if open < 0 || close_ < 0 || close_ < open {
		return 0, 0, errors.New("malformed NPY shape")
	}
	parts := strings.Split(header[idx+open+1:idx+close_], ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed NPY shape: %w", err)
		}
		dims = append(dims, d)
	}
	if len(dims) != 2 {
		return 0, 0, ErrNPYNotMatrix
	}
	return dims[0], dims[1], nil
}
