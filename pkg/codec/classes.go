package codec

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"sightdata/pkg/array"
	"sightdata/pkg/data"
	"sightdata/pkg/dtype"
	"sightdata/pkg/generic"
	"sightdata/pkg/imagedata"
	"sightdata/pkg/mesh"
)

// class encodes and decodes the body of one object class.
type class struct {
	create func(d *decoder, name string) (data.Object, error)
	encode func(e *encoder, obj data.Object) (any, error)
	decode func(d *decoder, obj data.Object, body cbor.RawMessage) error
}

// classes is filled in init: the encoders recurse through lookup.
var classes map[string]class

const vecPrefix, vecSuffix = "sight::data::vec<", ">"

var vecClass class

func init() {
	classes = map[string]class{
		array.Classname:     {createArray, encodeArray, decodeArray},
		mesh.Classname:      {createMesh, encodeMesh, decodeMesh},
		imagedata.Classname: {createImage, encodeImage, decodeImage},

		"sight::data::boolean": scalarClass[bool](),
		"sight::data::integer": scalarClass[int64](),
		"sight::data::real":    scalarClass[float64](),
		"sight::data::string":  scalarClass[string](),
	}
	vecClass = class{create: createVec, encode: encodeVec, decode: decodeVec}
}

func lookup(name string) (class, error) {
	if c, ok := classes[name]; ok {
		return c, nil
	}
	if strings.HasPrefix(name, vecPrefix) && strings.HasSuffix(name, vecSuffix) {
		return vecClass, nil
	}
	return class{}, fmt.Errorf("%q: %w", name, ErrUnknownClass)
}

func wrongClass(obj data.Object, want string) error {
	return &data.CopyError{From: obj.Classname(), To: want}
}

type arrayBody struct {
	Type  dtype.Type `cbor:"type"`
	Shape []int      `cbor:"shape,omitempty"`
	Data  []byte     `cbor:"data,omitempty"`
}

func createArray(d *decoder, _ string) (data.Object, error) {
	return array.New(d.arrayOptions()...), nil
}

func encodeArray(_ *encoder, obj data.Object) (any, error) {
	a, ok := obj.(*array.Array)
	if !ok {
		return nil, wrongClass(obj, array.Classname)
	}
	body := arrayBody{Type: a.Type(), Shape: a.Shape()}
	if a.Empty() {
		return body, nil
	}

	lock, err := a.Lock()
	if err != nil {
		return nil, err
	}
	defer lock.Release()
	raw, err := a.Bytes()
	if err != nil {
		return nil, err
	}
	body.Data = slices.Clone(raw)
	return body, nil
}

func decodeArray(_ *decoder, obj data.Object, raw cbor.RawMessage) error {
	a := obj.(*array.Array)
	var body arrayBody
	if err := decMode.Unmarshal(raw, &body); err != nil {
		return err
	}

	n, err := array.ByteSize(body.Shape, body.Type)
	if err != nil {
		return err
	}
	if len(body.Data) != n {
		return fmt.Errorf("%d bytes of data for shape %v of %s: %w", len(body.Data), body.Shape, body.Type, data.ErrShape)
	}
	if _, err := a.Resize(body.Shape, body.Type, true); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	lock, err := a.Lock()
	if err != nil {
		return err
	}
	defer lock.Release()
	dst, err := a.Bytes()
	if err != nil {
		return err
	}
	copy(dst, body.Data)
	return nil
}

type meshBody struct {
	NumPoints  int          `cbor:"num_points"`
	NumCells   int          `cbor:"num_cells"`
	CellType   string       `cbor:"cell_type"`
	Attributes string       `cbor:"attributes"`
	Points     [4]*envelope `cbor:"points"`
	Cells      [4]*envelope `cbor:"cells"`
}

func createMesh(d *decoder, _ string) (data.Object, error) {
	if d.manager == nil {
		return mesh.New(), nil
	}
	return mesh.New(mesh.WithManager(d.manager)), nil
}

func encodeMesh(e *encoder, obj data.Object) (any, error) {
	m, ok := obj.(*mesh.Mesh)
	if !ok {
		return nil, wrongClass(obj, mesh.Classname)
	}
	l := m.Layout()
	body := meshBody{
		NumPoints:  l.NumPoints,
		NumCells:   l.NumCells,
		CellType:   l.CellType.String(),
		Attributes: l.Attributes.String(),
	}
	for i := range l.Points {
		var err error
		if body.Points[i], err = e.envelope(l.Points[i]); err != nil {
			return nil, fmt.Errorf("point array %d: %w", i, err)
		}
	}
	for i := range l.Cells {
		var err error
		if body.Cells[i], err = e.envelope(l.Cells[i]); err != nil {
			return nil, fmt.Errorf("cell array %d: %w", i, err)
		}
	}
	return body, nil
}

func decodeMesh(d *decoder, obj data.Object, raw cbor.RawMessage) error {
	m := obj.(*mesh.Mesh)
	var body meshBody
	if err := decMode.Unmarshal(raw, &body); err != nil {
		return err
	}

	l := mesh.Layout{NumPoints: body.NumPoints, NumCells: body.NumCells}
	var err error
	if l.CellType, err = mesh.ParseCellType(body.CellType); err != nil {
		return err
	}
	if l.Attributes, err = mesh.ParseAttributes(body.Attributes); err != nil {
		return err
	}
	for i, env := range body.Points {
		if l.Points[i], err = decodeAs[*array.Array](d, env); err != nil {
			return fmt.Errorf("point array %d: %w", i, err)
		}
	}
	for i, env := range body.Cells {
		if l.Cells[i], err = decodeAs[*array.Array](d, env); err != nil {
			return fmt.Errorf("cell array %d: %w", i, err)
		}
	}
	return m.FromLayout(l)
}

type imageBody struct {
	Size        [3]int     `cbor:"size"`
	Spacing     [3]float64 `cbor:"spacing"`
	Origin      [3]float64 `cbor:"origin"`
	Orientation [9]float64 `cbor:"orientation"`
	Type        dtype.Type `cbor:"type"`
	Format      string     `cbor:"format"`
	Array       *envelope  `cbor:"array"`
}

func createImage(d *decoder, _ string) (data.Object, error) {
	if d.manager == nil {
		return imagedata.New(), nil
	}
	return imagedata.New(imagedata.WithManager(d.manager)), nil
}

func encodeImage(e *encoder, obj data.Object) (any, error) {
	img, ok := obj.(*imagedata.Image)
	if !ok {
		return nil, wrongClass(obj, imagedata.Classname)
	}
	a, err := e.envelope(img.Array())
	if err != nil {
		return nil, fmt.Errorf("pixel array: %w", err)
	}
	return imageBody{
		Size:        img.Size(),
		Spacing:     img.Spacing(),
		Origin:      img.Origin(),
		Orientation: img.Orientation(),
		Type:        img.Type(),
		Format:      img.PixelFormat().String(),
		Array:       a,
	}, nil
}

func decodeImage(d *decoder, obj data.Object, raw cbor.RawMessage) error {
	img := obj.(*imagedata.Image)
	var body imageBody
	if err := decMode.Unmarshal(raw, &body); err != nil {
		return err
	}
	format, err := imagedata.ParsePixelFormat(body.Format)
	if err != nil {
		return err
	}
	a, err := decodeAs[*array.Array](d, body.Array)
	if err != nil {
		return fmt.Errorf("pixel array: %w", err)
	}
	if a == nil {
		return fmt.Errorf("image without pixel array: %w", data.ErrShape)
	}

	// Metadata only: the pixel buffer comes from the decoded array.
	if _, err := img.Resize(body.Size, body.Type, format, false); err != nil {
		return err
	}
	img.SetSpacing(body.Spacing)
	img.SetOrigin(body.Origin)
	img.SetOrientation(body.Orientation)
	return img.SetArray(a)
}

type scalarBody[T generic.Scalar] struct {
	Value   T `cbor:"value"`
	Default T `cbor:"default"`
}

func scalarClass[T generic.Scalar]() class {
	return class{
		create: func(*decoder, string) (data.Object, error) {
			var zero T
			return generic.New(zero), nil
		},
		encode: func(_ *encoder, obj data.Object) (any, error) {
			g, ok := obj.(*generic.Generic[T])
			if !ok {
				var zero T
				return nil, wrongClass(obj, generic.New(zero).Classname())
			}
			return scalarBody[T]{Value: g.Value(), Default: g.DefaultValue()}, nil
		},
		decode: func(_ *decoder, obj data.Object, raw cbor.RawMessage) error {
			g := obj.(*generic.Generic[T])
			var body scalarBody[T]
			if err := decMode.Unmarshal(raw, &body); err != nil {
				return err
			}
			g.SetValue(body.Default)
			g.SetDefaultValue()
			g.SetValue(body.Value)
			return nil
		},
	}
}

// vector is implemented by every generic.Vec instantiation.
type vector interface {
	data.Object
	String() string
	DefaultString() string
	FromString(s string) error
	SetDefaultValue()
}

type vecBody struct {
	Value   string `cbor:"value"`
	Default string `cbor:"default"`
}

// createVec parses "sight::data::vec<float64,3>".
func createVec(_ *decoder, name string) (data.Object, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(name, vecPrefix), vecSuffix)
	typeName, count, ok := strings.Cut(inner, ",")
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownClass)
	}
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownClass)
	}
	typ, err := dtype.Parse(typeName)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownClass)
	}

	switch typ {
	case dtype.Int8Type:
		return generic.NewVecN[int8](n), nil
	case dtype.Int16Type:
		return generic.NewVecN[int16](n), nil
	case dtype.Int32Type:
		return generic.NewVecN[int32](n), nil
	case dtype.Int64Type:
		return generic.NewVecN[int64](n), nil
	case dtype.Uint8Type:
		return generic.NewVecN[uint8](n), nil
	case dtype.Uint16Type:
		return generic.NewVecN[uint16](n), nil
	case dtype.Uint32Type:
		return generic.NewVecN[uint32](n), nil
	case dtype.Uint64Type:
		return generic.NewVecN[uint64](n), nil
	case dtype.Float32Type:
		return generic.NewVecN[float32](n), nil
	case dtype.Float64Type:
		return generic.NewVecN[float64](n), nil
	}
	return nil, fmt.Errorf("%q: %w", name, ErrUnknownClass)
}

func encodeVec(_ *encoder, obj data.Object) (any, error) {
	v, ok := obj.(vector)
	if !ok {
		return nil, wrongClass(obj, "sight::data::vec")
	}
	return vecBody{Value: v.String(), Default: v.DefaultString()}, nil
}

func decodeVec(_ *decoder, obj data.Object, raw cbor.RawMessage) error {
	v := obj.(vector)
	var body vecBody
	if err := decMode.Unmarshal(raw, &body); err != nil {
		return err
	}
	if err := v.FromString(body.Default); err != nil {
		return fmt.Errorf("default: %w", err)
	}
	v.SetDefaultValue()
	return v.FromString(body.Value)
}
