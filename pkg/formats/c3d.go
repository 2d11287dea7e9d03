package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// C3D format errors.
var (
	ErrInvalidC3DHeader   = errors.New("invalid C3D header")
	ErrUnsupportedC3DFile = errors.New("unsupported C3D file")
	ErrTruncatedC3DData   = errors.New("truncated C3D data")
)

const (
	c3dBlockSize      = 512
	c3dHeaderKey      = 0x50
	c3dProcessorIntel = 84
)

// C3DEvent is one discrete event stored in the EVENT parameter group.
// Time is absolute seconds from the start of the capture.
type C3DEvent struct {
	Context string
	Label   string
	Time    float64
}

// C3D holds the part of a motion-capture container this viewer uses:
// labeled 3D point trajectories plus the discrete event ledger.
type C3D struct {
	PointLabels []string
	Units       string
	PointRate   float64
	FirstFrame  int // 1-based, as stored in the file header
	Points      [][]r3.Vec // [frame][point]; NaN where the residual marks the point invalid
	Events      []C3DEvent
}

// NumFrames returns the number of point frames.
func (c *C3D) NumFrames() int { return len(c.Points) }

// LastFrame returns the 1-based index of the last frame.
func (c *C3D) LastFrame() int { return c.FirstFrame + len(c.Points) - 1 }

type c3dParam struct {
	dataType int8
	dims     []int
	data     []byte
}

// ParseC3D parses a C3D file from raw bytes. Only Intel-processor files are
// supported; both floating-point and scaled-integer point data are accepted.
func ParseC3D(data []byte) (*C3D, error) {
	if len(data) < c3dBlockSize {
		return nil, ErrTruncatedC3DData
	}
	paramBlock := int(data[0])
	if data[1] != c3dHeaderKey || paramBlock < 1 {
		return nil, ErrInvalidC3DHeader
	}

	nPoints := int(binary.LittleEndian.Uint16(data[2:]))
	firstFrame := int(binary.LittleEndian.Uint16(data[6:]))
	lastFrame := int(binary.LittleEndian.Uint16(data[8:]))
	scale := math.Float32frombits(binary.LittleEndian.Uint32(data[12:]))
	dataStart := int(binary.LittleEndian.Uint16(data[16:]))
	rate := math.Float32frombits(binary.LittleEndian.Uint32(data[20:]))
	analogPerFrame := int(binary.LittleEndian.Uint16(data[4:]))
	analogSamples := int(binary.LittleEndian.Uint16(data[18:]))

	params, err := parseC3DParams(data, paramBlock)
	if err != nil {
		return nil, err
	}

	c := &C3D{
		PointRate:  float64(rate),
		FirstFrame: firstFrame,
	}

	if p, ok := params["POINT:LABELS"]; ok {
		c.PointLabels = c3dStrings(p)
	}
	for len(c.PointLabels) < nPoints {
		c.PointLabels = append(c.PointLabels, fmt.Sprintf("point_%d", len(c.PointLabels)+1))
	}
	c.PointLabels = c.PointLabels[:nPoints]
	if p, ok := params["POINT:UNITS"]; ok {
		units := c3dStrings(p)
		if len(units) > 0 {
			c.Units = units[0]
		}
	}

	// Point data.
	offset := (dataStart - 1) * c3dBlockSize
	if offset < 0 || offset > len(data) {
		return nil, ErrTruncatedC3DData
	}
	frames := lastFrame - firstFrame + 1
	if frames < 0 {
		return nil, ErrInvalidC3DHeader
	}
	floatData := scale < 0
	var pointSize, analogElem int
	if floatData {
		pointSize, analogElem = 16, 4
	} else {
		pointSize, analogElem = 8, 2
	}
	frameSize := nPoints*pointSize + analogPerFrame*analogSamples*analogElem
	if offset+frames*frameSize > len(data) {
		return nil, ErrTruncatedC3DData
	}

	c.Points = make([][]r3.Vec, frames)
	for f := 0; f < frames; f++ {
		row := make([]r3.Vec, nPoints)
		base := offset + f*frameSize
		for p := 0; p < nPoints; p++ {
			var x, y, z, residual float64
			if floatData {
				o := base + p*16
				x = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[o:])))
				y = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[o+4:])))
				z = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[o+8:])))
				residual = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[o+12:])))
			} else {
				o := base + p*8
				s := float64(scale)
				x = float64(int16(binary.LittleEndian.Uint16(data[o:]))) * s
				y = float64(int16(binary.LittleEndian.Uint16(data[o+2:]))) * s
				z = float64(int16(binary.LittleEndian.Uint16(data[o+4:]))) * s
				residual = float64(int16(binary.LittleEndian.Uint16(data[o+6:])))
			}
			if residual < 0 {
				nan := math.NaN()
				row[p] = r3.Vec{X: nan, Y: nan, Z: nan}
			} else {
				row[p] = r3.Vec{X: x, Y: y, Z: z}
			}
		}
		c.Points[f] = row
	}

	c.Events = parseC3DEvents(params)
	return c, nil
}

// ReadC3D reads and parses a C3D file from disk.
func ReadC3D(path string) (*C3D, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading C3D file: %w", err)
	}
	c, err := ParseC3D(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

func parseC3DParams(data []byte, paramBlock int) (map[string]c3dParam, error) {
	offset := (paramBlock - 1) * c3dBlockSize
	if offset+4 > len(data) {
		return nil, ErrTruncatedC3DData
	}
	if data[offset+3] != c3dProcessorIntel {
		return nil, fmt.Errorf("%w: processor type %d", ErrUnsupportedC3DFile, data[offset+3])
	}

	params := make(map[string]c3dParam)
	groups := make(map[int]string)
	type pending struct {
		groupID int
		name    string
		param   c3dParam
	}
	var pendingParams []pending

	pos := offset + 4
	for pos+2 <= len(data) {
		nameLen := int(int8(data[pos]))
		id := int(int8(data[pos+1]))
		if nameLen < 0 {
			nameLen = -nameLen // locked, irrelevant for reading
		}
		if nameLen == 0 || id == 0 {
			break
		}
		if pos+2+nameLen+2 > len(data) {
			return nil, ErrTruncatedC3DData
		}
		name := strings.ToUpper(string(data[pos+2 : pos+2+nameLen]))
		offsetPos := pos + 2 + nameLen
		next := int(int16(binary.LittleEndian.Uint16(data[offsetPos:])))

		if id < 0 {
			groups[-id] = name
		} else {
			p := offsetPos + 2
			if p+2 > len(data) {
				return nil, ErrTruncatedC3DData
			}
			dataType := int8(data[p])
			nDims := int(data[p+1])
			p += 2
			if p+nDims > len(data) {
				return nil, ErrTruncatedC3DData
			}
			dims := make([]int, nDims)
			total := 1
			for d := 0; d < nDims; d++ {
				dims[d] = int(data[p+d])
				total *= dims[d]
			}
			p += nDims
			elem := c3dTypeSize(dataType)
			if elem == 0 {
				return nil, fmt.Errorf("%w: parameter type %d", ErrUnsupportedC3DFile, dataType)
			}
			if p+total*elem > len(data) {
				return nil, ErrTruncatedC3DData
			}
			pendingParams = append(pendingParams, pending{
				groupID: id,
				name:    name,
				param:   c3dParam{dataType: dataType, dims: dims, data: data[p : p+total*elem]},
			})
		}

		if next == 0 {
			break
		}
		pos = offsetPos + next
	}

	for _, pp := range pendingParams {
		group, ok := groups[pp.groupID]
		if !ok {
			continue
		}
		params[group+":"+pp.name] = pp.param
	}
	return params, nil
}

func c3dTypeSize(t int8) int {
	switch t {
	case -1, 1:
		return 1
	case 2:
		return 2
	case 4:
		return 4
	default:
		return 0
	}
}

// c3dStrings decodes a character parameter: 1D is a single string, 2D is a
// column of fixed-width strings.
func c3dStrings(p c3dParam) []string {
	if p.dataType != -1 {
		return nil
	}
	if len(p.dims) < 2 {
		return []string{strings.TrimSpace(string(p.data))}
	}
	width, count := p.dims[0], p.dims[1]
	out := make([]string, 0, count)
	for i := 0; i < count && (i+1)*width <= len(p.data); i++ {
		out = append(out, strings.TrimSpace(string(p.data[i*width:(i+1)*width])))
	}
	return out
}

func c3dInt16At(p c3dParam, i int) int {
	if p.dataType != 2 || (i+1)*2 > len(p.data) {
		return 0
	}
	return int(int16(binary.LittleEndian.Uint16(p.data[i*2:])))
}

func c3dFloatAt(p c3dParam, i int) float64 {
	if p.dataType != 4 || (i+1)*4 > len(p.data) {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.data[i*4:])))
}

// BuildC3D serializes a capture as an Intel floating-point C3D file. Points
// with any NaN coordinate are written with a negative residual so they read
// back as invalid.
func BuildC3D(c *C3D) []byte {
	nPoints := len(c.PointLabels)
	frames := len(c.Points)

	params := buildC3DParams(c)
	nParamBlocks := (len(params) + c3dBlockSize - 1) / c3dBlockSize
	if nParamBlocks == 0 {
		nParamBlocks = 1
	}
	dataStart := 2 + nParamBlocks

	out := make([]byte, dataStart*c3dBlockSize+frames*nPoints*16)

	// Header block.
	out[0] = 2 // parameter section starts at block 2
	out[1] = c3dHeaderKey
	binary.LittleEndian.PutUint16(out[2:], uint16(nPoints))
	binary.LittleEndian.PutUint16(out[6:], uint16(c.FirstFrame))
	binary.LittleEndian.PutUint16(out[8:], uint16(c.FirstFrame+frames-1))
	binary.LittleEndian.PutUint32(out[12:], math.Float32bits(-1)) // float data
	binary.LittleEndian.PutUint16(out[16:], uint16(dataStart))
	binary.LittleEndian.PutUint32(out[20:], math.Float32bits(float32(c.PointRate)))

	// Parameter section.
	pb := c3dBlockSize
	out[pb] = 1
	out[pb+1] = c3dHeaderKey
	out[pb+2] = byte(nParamBlocks)
	out[pb+3] = c3dProcessorIntel
	copy(out[pb+4:], params)

	// Point data.
	o := (dataStart - 1) * c3dBlockSize
	for _, row := range c.Points {
		for p := 0; p < nPoints; p++ {
			var v r3.Vec
			if p < len(row) {
				v = row[p]
			}
			residual := float32(0)
			if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
				v, residual = r3.Vec{}, -1
			}
			binary.LittleEndian.PutUint32(out[o:], math.Float32bits(float32(v.X)))
			binary.LittleEndian.PutUint32(out[o+4:], math.Float32bits(float32(v.Y)))
			binary.LittleEndian.PutUint32(out[o+8:], math.Float32bits(float32(v.Z)))
			binary.LittleEndian.PutUint32(out[o+12:], math.Float32bits(residual))
			o += 16
		}
	}
	return out
}

// WriteC3D writes a capture to disk.
func WriteC3D(path string, c *C3D) error {
	return os.WriteFile(path, BuildC3D(c), 0o644)
}

func buildC3DParams(c *C3D) []byte {
	var recs [][]byte

	recs = append(recs, c3dGroupRecord(1, "POINT"))
	recs = append(recs, c3dInt16Record(1, "USED", int16(len(c.PointLabels))))
	recs = append(recs, c3dInt16Record(1, "FRAMES", int16(len(c.Points))))
	recs = append(recs, c3dFloatRecord(1, "RATE", []float32{float32(c.PointRate)}, nil))
	recs = append(recs, c3dFloatRecord(1, "SCALE", []float32{-1}, nil))
	units := c.Units
	if units == "" {
		units = "m"
	}
	recs = append(recs, c3dCharRecord(1, "UNITS", []string{units}))
	recs = append(recs, c3dCharRecord(1, "LABELS", c.PointLabels))

	recs = append(recs, c3dGroupRecord(2, "EVENT"))
	recs = append(recs, c3dInt16Record(2, "USED", int16(len(c.Events))))
	contexts := make([]string, len(c.Events))
	labels := make([]string, len(c.Events))
	times := make([]float32, 2*len(c.Events))
	for i, ev := range c.Events {
		contexts[i] = ev.Context
		labels[i] = ev.Label
		minutes := math.Floor(ev.Time / 60)
		times[2*i] = float32(minutes)
		times[2*i+1] = float32(ev.Time - minutes*60)
	}
	recs = append(recs, c3dCharRecord(2, "CONTEXTS", contexts))
	recs = append(recs, c3dCharRecord(2, "LABELS", labels))
	recs = append(recs, c3dFloatRecord(2, "TIMES", times, []int{2, len(c.Events)}))

	var buf []byte
	for i, r := range recs {
		nameLen := int(r[0])
		if i < len(recs)-1 {
			// Offset counts from the start of the offset field.
			binary.LittleEndian.PutUint16(r[2+nameLen:], uint16(len(r)-2-nameLen))
		}
		buf = append(buf, r...)
	}
	buf = append(buf, 0, 0) // terminator
	return buf
}

func c3dGroupRecord(id int8, name string) []byte {
	r := []byte{byte(len(name)), byte(-id)}
	r = append(r, name...)
	r = append(r, 0, 0) // offset placeholder
	r = append(r, 0)    // no description
	return r
}

func c3dParamRecord(id int8, name string, dataType int8, dims []int, data []byte) []byte {
	r := []byte{byte(len(name)), byte(id)}
	r = append(r, name...)
	r = append(r, 0, 0) // offset placeholder
	r = append(r, byte(dataType), byte(len(dims)))
	for _, d := range dims {
		r = append(r, byte(d))
	}
	r = append(r, data...)
	r = append(r, 0) // no description
	return r
}

func c3dInt16Record(id int8, name string, v int16) []byte {
	data := binary.LittleEndian.AppendUint16(nil, uint16(v))
	return c3dParamRecord(id, name, 2, nil, data)
}

func c3dFloatRecord(id int8, name string, vs []float32, dims []int) []byte {
	var data []byte
	for _, v := range vs {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
	}
	if dims == nil {
		dims = []int{len(vs)}
	}
	return c3dParamRecord(id, name, 4, dims, data)
}

// c3dCharRecord packs strings into a fixed-width character column.
func c3dCharRecord(id int8, name string, vs []string) []byte {
	width := 0
	for _, s := range vs {
		if len(s) > width {
			width = len(s)
		}
	}
	if width == 0 {
		width = 1
	}
	data := make([]byte, width*len(vs))
	for i := range data {
		data[i] = ' '
	}
	for i, s := range vs {
		copy(data[i*width:], s)
	}
	return c3dParamRecord(id, name, -1, []int{width, len(vs)}, data)
}

// parseC3DEvents decodes the EVENT group: USED count, CONTEXTS and LABELS
// character columns, and TIMES stored as [minutes, seconds] pairs.
func parseC3DEvents(params map[string]c3dParam) []C3DEvent {
	used, ok := params["EVENT:USED"]
	if !ok {
		return nil
	}
	n := c3dInt16At(used, 0)
	if n <= 0 {
		return nil
	}
	var contexts, labels []string
	if p, ok := params["EVENT:CONTEXTS"]; ok {
		contexts = c3dStrings(p)
	}
	if p, ok := params["EVENT:LABELS"]; ok {
		labels = c3dStrings(p)
	}
	times, hasTimes := params["EVENT:TIMES"]

	events := make([]C3DEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := C3DEvent{Context: "General"}
		if i < len(contexts) && contexts[i] != "" {
			ev.Context = contexts[i]
		}
		if i < len(labels) {
			ev.Label = labels[i]
		}
		if hasTimes {
			minutes := c3dFloatAt(times, i*2)
			seconds := c3dFloatAt(times, i*2+1)
			ev.Time = minutes*60 + seconds
		}
		events = append(events, ev)
	}
	return events
}
