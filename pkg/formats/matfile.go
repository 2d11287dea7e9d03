package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// MAT-file errors.
var (
	ErrInvalidMATHeader   = errors.New("invalid MAT-file header")
	ErrUnsupportedMATFile = errors.New("unsupported MAT-file element")
	ErrTruncatedMATData   = errors.New("truncated MAT-file data")
	ErrMATVariableMissing = errors.New("variable not found in MAT-file")
)

// MAT-file (level 5) data types used here.
const (
	miINT8       = 1
	miUINT8      = 2
	miINT16      = 3
	miUINT16     = 4
	miINT32      = 5
	miUINT32     = 6
	miSINGLE     = 7
	miDOUBLE     = 9
	miMATRIX     = 14
	miCOMPRESSED = 15

	mxDOUBLE_CLASS = 6
)

// ParseMATMatrix extracts the named two-dimensional double matrix from a
// level-5 MAT-file. Only uncompressed files are supported; the legacy
// reconstruction files this viewer accepts were written that way.
func ParseMATMatrix(data []byte, name string) (*mat.Dense, error) {
	if len(data) < 128 {
		return nil, ErrInvalidMATHeader
	}
	// Endianness indicator at bytes 126-127: "IM" means little endian.
	if data[126] != 'I' || data[127] != 'M' {
		return nil, fmt.Errorf("%w: big-endian MAT-files are not supported", ErrInvalidMATHeader)
	}

	pos := 128
	for pos+8 <= len(data) {
		elemType := binary.LittleEndian.Uint32(data[pos:])
		elemSize := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		if body+elemSize > len(data) {
			return nil, ErrTruncatedMATData
		}
		switch elemType {
		case miCOMPRESSED:
			return nil, fmt.Errorf("%w: compressed element", ErrUnsupportedMATFile)
		case miMATRIX:
			m, varName, err := parseMATMatrixElement(data[body : body+elemSize])
			if err != nil {
				return nil, err
			}
			if varName == name {
				return m, nil
			}
		}
		// Elements are padded to 8-byte boundaries.
		pos = body + (elemSize+7)&^7
	}
	return nil, fmt.Errorf("%w: %q", ErrMATVariableMissing, name)
}

// ReadMATMatrix reads the named matrix from a MAT-file on disk.
func ReadMATMatrix(path, name string) (*mat.Dense, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading MAT-file: %w", err)
	}
	m, err := ParseMATMatrix(data, name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// matSubElement reads one sub-element tag, handling the small data element
// format where type and size share the first word.
func matSubElement(data []byte, pos int) (elemType, size, body, next int, err error) {
	if pos+8 > len(data) {
		return 0, 0, 0, 0, ErrTruncatedMATData
	}
	word := binary.LittleEndian.Uint32(data[pos:])
	if word>>16 != 0 {
		// Small data element: size in the upper 16 bits, data in the
		// remaining 4 bytes of the tag.
		elemType = int(word & 0xFFFF)
		size = int(word >> 16)
		body = pos + 4
		next = pos + 8
		return elemType, size, body, next, nil
	}
	elemType = int(word)
	size = int(binary.LittleEndian.Uint32(data[pos+4:]))
	body = pos + 8
	if body+size > len(data) {
		return 0, 0, 0, 0, ErrTruncatedMATData
	}
	next = body + (size+7)&^7
	return elemType, size, body, next, nil
}

func parseMATMatrixElement(data []byte) (*mat.Dense, string, error) {
	// Array flags.
	elemType, _, body, next, err := matSubElement(data, 0)
	if err != nil {
		return nil, "", err
	}
	if elemType != miUINT32 {
		return nil, "", fmt.Errorf("%w: bad array flags", ErrUnsupportedMATFile)
	}
	class := int(data[body])
	if class != mxDOUBLE_CLASS {
		return nil, "", fmt.Errorf("%w: array class %d", ErrUnsupportedMATFile, class)
	}

	// Dimensions.
	elemType, size, body, next, err := matSubElement(data, next)
	if err != nil {
		return nil, "", err
	}
	if elemType != miINT32 || size != 8 {
		return nil, "", fmt.Errorf("%w: matrix is not two-dimensional", ErrUnsupportedMATFile)
	}
	rows := int(int32(binary.LittleEndian.Uint32(data[body:])))
	cols := int(int32(binary.LittleEndian.Uint32(data[body+4:])))

	// Array name.
	elemType, size, body, next, err = matSubElement(data, next)
	if err != nil {
		return nil, "", err
	}
	if elemType != miINT8 {
		return nil, "", fmt.Errorf("%w: bad array name", ErrUnsupportedMATFile)
	}
	varName := string(data[body : body+size])

	// Real part. MAT-files store column-major.
	elemType, size, body, _, err = matSubElement(data, next)
	if err != nil {
		return nil, "", err
	}
	out := mat.NewDense(rows, cols, nil)
	switch elemType {
	case miDOUBLE:
		if size < rows*cols*8 {
			return nil, "", ErrTruncatedMATData
		}
		for i := 0; i < rows*cols; i++ {
			v := math.Float64frombits(binary.LittleEndian.Uint64(data[body+i*8:]))
			out.Set(i%rows, i/rows, v)
		}
	case miSINGLE:
		if size < rows*cols*4 {
			return nil, "", ErrTruncatedMATData
		}
		for i := 0; i < rows*cols; i++ {
			v := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[body+i*4:])))
			out.Set(i%rows, i/rows, v)
		}
	default:
		return nil, "", fmt.Errorf("%w: real part type %d", ErrUnsupportedMATFile, elemType)
	}
	return out, varName, nil
}
