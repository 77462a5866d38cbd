package encoding

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const encodedValueVersion = 0

// EncodedValue is a typed value ready for the wire: one encoded
// scalar per element for arrays, exactly one otherwise.
type EncodedValue struct {
	Type DataType `json:"type"`
	Data [][]byte `json:"data"`
}

// EncodeValue encodes a scalar or a slice of scalars, inferring the type.
func EncodeValue(v interface{}) (*EncodedValue, error) {
	if isList(v) {
		return encodeList(v)
	}

	data, t, err := EncodeScalar(v)
	if err != nil {
		return nil, err
	}

	return &EncodedValue{Type: t, Data: [][]byte{data}}, nil
}

// EncodeValueAs encodes v as the declared type t. Array types
// require a slice or array value.
func EncodeValueAs(v interface{}, t DataType) (*EncodedValue, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if !t.IsArray {
		data, err := EncodeScalarAs(v, t)
		if err != nil {
			return nil, err
		}
		return &EncodedValue{Type: t, Data: [][]byte{data}}, nil
	}

	if !isList(v) {
		return nil, fmt.Errorf("%w: %s requires a slice, got %T", ErrInvalidValue, t, v)
	}

	rv := reflect.ValueOf(v)
	if err := CheckCount("array element", rv.Len()); err != nil {
		return nil, err
	}

	ev := &EncodedValue{Type: t, Data: make([][]byte, rv.Len())}
	for i := 0; i < rv.Len(); i++ {
		data, err := EncodeScalarAs(rv.Index(i).Interface(), t.Elem())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		ev.Data[i] = data
	}

	return ev, nil
}

var (
	bytesType   = reflect.TypeOf([]byte(nil))
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// isList reports slices and arrays that are not themselves scalars.
func isList(v interface{}) bool {
	if v == nil {
		return false
	}

	rt := reflect.TypeOf(v)
	switch rt.Kind() {
	case reflect.Slice:
		return rt != bytesType
	case reflect.Array:
		return rt != uuidType
	}
	return false
}

func encodeList(v interface{}) (*EncodedValue, error) {
	rv := reflect.ValueOf(v)
	if err := CheckCount("array element", rv.Len()); err != nil {
		return nil, err
	}

	data := make([][]byte, rv.Len())
	var (
		elemType  DataType
		typed     bool
		mixedText bool
		decimals  []decimal.Decimal
		nulls     int
	)

	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if isList(elem) {
			return nil, fmt.Errorf("%w: nested arrays are not supported", ErrUnsupportedScalar)
		}

		b, t, err := EncodeScalar(elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		data[i] = b

		if t.Name == TypeNull {
			nulls++
			continue
		}

		if t.Name == TypeDecimal || t.Name == TypeInt {
			if d, err := toDecimal(elem); err == nil {
				decimals = append(decimals, d)
			}
		}

		if !typed {
			elemType, typed = t, true
			continue
		}

		if t.Name == elemType.Name {
			continue
		}

		// Ints next to decimals, e.g. []float64{1, 1.5}, widen to decimal.
		if numeric(t.Name) && numeric(elemType.Name) && len(decimals) == i+1-nulls {
			elemType = DataType{Name: TypeDecimal}
			continue
		}

		// Strings that happen to look like UUIDs stay text next to plain strings.
		if uuidOrText(t.Name) && uuidOrText(elemType.Name) {
			elemType, mixedText = TextType, true
			continue
		}

		return nil, fmt.Errorf("%w: array mixes %s and %s", ErrInvalidValue, elemType.Name, t.Name)
	}

	if !typed {
		elemType = staticElemType(rv.Type().Elem())
	}

	if mixedText {
		for i := 0; i < rv.Len(); i++ {
			b, err := EncodeScalarAs(rv.Index(i).Interface(), TextType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			data[i] = b
		}
	}

	// Decimal elements share one (precision, scale) wide enough for all of them.
	if elemType.Name == TypeDecimal && len(decimals) > 0 {
		elemType = widestDecimal(decimals)
		for i := 0; i < rv.Len(); i++ {
			b, err := EncodeScalarAs(rv.Index(i).Interface(), elemType)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			data[i] = b
		}
	}

	return &EncodedValue{Type: elemType.Array(), Data: data}, nil
}

func numeric(name string) bool {
	return name == TypeInt || name == TypeDecimal
}

func uuidOrText(name string) bool {
	return name == TypeUUID || name == TypeText
}

func widestDecimal(values []decimal.Decimal) DataType {
	var intDigits, scale uint16
	for _, d := range values {
		// Values were already accepted by EncodeScalar, so metadata is in range.
		_, t, _ := encodeDecimal(d)
		p, s := t.Metadata[0], t.Metadata[1]
		if p-s > intDigits {
			intDigits = p - s
		}
		if s > scale {
			scale = s
		}
	}

	precision := intDigits + scale
	if precision == 0 {
		precision = 1
	}
	if precision > maxDecimalPrecision {
		precision = maxDecimalPrecision
	}

	return DataType{Name: TypeDecimal, Metadata: [2]uint16{precision, scale}}
}

// staticElemType picks the element type of empty or all-null slices.
func staticElemType(rt reflect.Type) DataType {
	for rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}

	switch {
	case rt == bytesType:
		return BlobType
	case rt == uuidType:
		return UUIDType
	case rt == decimalType:
		return DataType{Name: TypeDecimal, Metadata: [2]uint16{1, 0}}
	}

	if k := rt.Kind(); k == reflect.Float32 || k == reflect.Float64 {
		return DataType{Name: TypeDecimal, Metadata: [2]uint16{1, 0}}
	}

	switch rt.Kind() {
	case reflect.Bool:
		return BoolType
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return IntType
	}

	return TextType
}

// MarshalBinary encodes the value.
//
//	[version u16][type length u32][type][count u16]([length u32][data])*
func (e *EncodedValue) MarshalBinary() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	typeBytes, err := e.Type.MarshalBinary()
	if err != nil {
		return nil, err
	}

	w := new(Writer)
	w.Uint16(encodedValueVersion)
	w.Bytes(typeBytes)
	w.Uint16(uint16(len(e.Data)))
	for _, d := range e.Data {
		w.Bytes(d)
	}

	return w.Result(), nil
}

func (e *EncodedValue) validate() error {
	if err := e.Type.Validate(); err != nil {
		return err
	}

	if !e.Type.IsArray && len(e.Data) != 1 {
		return fmt.Errorf("%w: scalar %s must have exactly one element, has %d", ErrInvalidValue, e.Type, len(e.Data))
	}

	if err := CheckCount("array element", len(e.Data)); err != nil {
		return err
	}

	for _, d := range e.Data {
		if err := CheckLength("element", len(d)); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalBinary is the exact inverse of MarshalBinary.
func (e *EncodedValue) UnmarshalBinary(data []byte) error {
	r := NewReader(data)

	version, err := r.Uint16("encoded value version")
	if err != nil {
		return err
	}
	if version != encodedValueVersion {
		return Malformed("encoded value: unknown version %d", version)
	}

	typeBytes, err := r.Bytes("encoded value type")
	if err != nil {
		return err
	}

	var t DataType
	if err := t.UnmarshalBinary(typeBytes); err != nil {
		return err
	}

	count, err := r.Uint16("encoded value element count")
	if err != nil {
		return err
	}

	if !t.IsArray && count != 1 {
		return Malformed("encoded value: scalar %s declares %d elements", t, count)
	}

	elems := make([][]byte, count)
	for i := range elems {
		if elems[i], err = r.Bytes(fmt.Sprintf("element %d", i)); err != nil {
			return err
		}
	}

	if err := r.Done("encoded value"); err != nil {
		return err
	}

	e.Type = t
	e.Data = elems
	return nil
}

// Decode returns the Go value: a scalar, or []interface{} for arrays.
func (e *EncodedValue) Decode() (interface{}, error) {
	if !e.Type.IsArray {
		if len(e.Data) != 1 {
			return nil, Malformed("scalar %s has %d elements", e.Type, len(e.Data))
		}
		return DecodeScalar(e.Data[0], e.Type)
	}

	out := make([]interface{}, len(e.Data))
	for i, d := range e.Data {
		v, err := DecodeScalar(d, e.Type.Elem())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}

	return out, nil
}
