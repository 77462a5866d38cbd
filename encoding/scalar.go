package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"

	"kwil-client/util/convert"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Every encoded scalar starts with a presence flag, so an empty
// text value ([0x01]) never collides with null ([0x00]).
const (
	nullFlag    byte = 0
	presentFlag byte = 1
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func present(payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = presentFlag
	copy(out[1:], payload)
	return out
}

func encodeInt64(v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return present(b[:])
}

// isCanonicalUUID only accepts the 36-character hyphenated form,
// so 32-character hex strings stay text.
func isCanonicalUUID(s string) (uuid.UUID, bool) {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return uuid.UUID{}, false
	}

	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, false
	}
	return u, true
}

// EncodeScalar encodes a Go value and infers its data type.
//
// UUID strings become 16 raw bytes, nil becomes the null marker, []byte
// passes through, decimal.Decimal and fractional floats keep their base-10
// text, strings are UTF-8, bools one byte and integers 8 little-endian bytes.
func EncodeScalar(v interface{}) ([]byte, DataType, error) {
	switch t := v.(type) {
	case nil:
		return []byte{nullFlag}, NullType, nil
	case uuid.UUID:
		return present(t[:]), UUIDType, nil
	case *uuid.UUID:
		if t == nil {
			return []byte{nullFlag}, NullType, nil
		}
		return present(t[:]), UUIDType, nil
	case string:
		if u, ok := isCanonicalUUID(t); ok {
			return present(u[:]), UUIDType, nil
		}
		return present([]byte(t)), TextType, nil
	case []byte:
		return present(t), BlobType, nil
	case decimal.Decimal:
		return encodeDecimal(t)
	case *decimal.Decimal:
		if t == nil {
			return []byte{nullFlag}, NullType, nil
		}
		return encodeDecimal(*t)
	case bool:
		return encodeBool(t), BoolType, nil
	case int:
		return encodeInt64(int64(t)), IntType, nil
	case int8:
		return encodeInt64(int64(t)), IntType, nil
	case int16:
		return encodeInt64(int64(t)), IntType, nil
	case int32:
		return encodeInt64(int64(t)), IntType, nil
	case int64:
		return encodeInt64(t), IntType, nil
	case uint8:
		return encodeInt64(int64(t)), IntType, nil
	case uint16:
		return encodeInt64(int64(t)), IntType, nil
	case uint32:
		return encodeInt64(int64(t)), IntType, nil
	case uint:
		return encodeUint64(uint64(t))
	case uint64:
		return encodeUint64(t)
	case *big.Int, big.Int:
		return nil, DataType{}, unsupported(v, "convert big integers to a base-10 string first")
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil, DataType{}, unsupported(v, "NaN and infinity have no decimal form")
		}
		return encodeFloat(float64(t), decimal.NewFromFloat32(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, DataType{}, unsupported(v, "NaN and infinity have no decimal form")
		}
		return encodeFloat(t, decimal.NewFromFloat(t))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return []byte{nullFlag}, NullType, nil
		}
		return EncodeScalar(rv.Elem().Interface())
	}

	return nil, DataType{}, unsupported(v, "convert it to a string first")
}

func encodeUint64(v uint64) ([]byte, DataType, error) {
	if v > math.MaxInt64 {
		return nil, DataType{}, rangeErr("int", v, math.MaxInt64)
	}
	return encodeInt64(int64(v)), IntType, nil
}

// encodeFloat never puts IEEE bytes on the wire: whole numbers that fit
// an int64 are ints, everything else is the shortest decimal text of f.
func encodeFloat(f float64, d decimal.Decimal) ([]byte, DataType, error) {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return encodeInt64(int64(f)), IntType, nil
	}
	return encodeDecimal(d)
}

func encodeDecimal(d decimal.Decimal) ([]byte, DataType, error) {
	precision, scale, err := convert.DecimalMetadata(d)
	if err != nil {
		return nil, DataType{}, fmt.Errorf("%w: %v", ErrEncodingRange, err)
	}

	t := DataType{Name: TypeDecimal, Metadata: [2]uint16{precision, scale}}
	return present([]byte(convert.DecimalString(d))), t, nil
}

// EncodeScalarAs encodes v as the declared scalar type t, converting
// strings and integers where the conversion is lossless.
func EncodeScalarAs(v interface{}, t DataType) ([]byte, error) {
	if t.IsArray {
		return nil, fmt.Errorf("%w: %s is not a scalar type", ErrInvalidDataType, t)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if isNil(v) {
		return []byte{nullFlag}, nil
	}

	switch t.Name {
	case TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(v, t)
		}
		return present([]byte(s)), nil
	case TypeBlob:
		switch b := v.(type) {
		case []byte:
			return present(b), nil
		case string:
			return present([]byte(b)), nil
		}
		return nil, mismatch(v, t)
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return encodeBool(b), nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a bool", ErrInvalidValue, b)
			}
			return encodeBool(parsed), nil
		}
		return nil, mismatch(v, t)
	case TypeInt:
		if s, ok := v.(string); ok {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an int: %v", ErrInvalidValue, s, err)
			}
			return encodeInt64(i), nil
		}
		b, inferred, err := EncodeScalar(v)
		if err != nil {
			return nil, err
		}
		if inferred.Name != TypeInt {
			return nil, mismatch(v, t)
		}
		return b, nil
	case TypeUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return present(u[:]), nil
		case string:
			parsed, err := uuid.Parse(u)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a uuid", ErrInvalidValue, u)
			}
			return present(parsed[:]), nil
		}
		return nil, mismatch(v, t)
	case TypeDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		if err := convert.CheckDecimal(d, t.Metadata[0], t.Metadata[1]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodingRange, err)
		}
		return present([]byte(d.StringFixed(int32(t.Metadata[1])))), nil
	case TypeUint256:
		var s string
		switch u := v.(type) {
		case string:
			s = u
		case uint, uint8, uint16, uint32, uint64:
			s = fmt.Sprint(u)
		default:
			return nil, mismatch(v, t)
		}
		n, err := convert.ParseUnsignedInt(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		if n.Cmp(maxUint256) > 0 {
			return nil, rangeErr("uint256", s, "2^256-1")
		}
		return present([]byte(convert.BigIntToString(n))), nil
	}

	// Only null remains, and nil was handled above.
	return nil, mismatch(v, t)
}

func encodeBool(b bool) []byte {
	if b {
		return present([]byte{1})
	}
	return present([]byte{0})
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case *decimal.Decimal:
		return *d, nil
	case string:
		parsed, err := decimal.NewFromString(d)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q is not a decimal", ErrInvalidValue, d)
		}
		return parsed, nil
	case int:
		return decimal.NewFromInt(int64(d)), nil
	case int8:
		return decimal.NewFromInt(int64(d)), nil
	case int16:
		return decimal.NewFromInt(int64(d)), nil
	case int32:
		return decimal.NewFromInt32(d), nil
	case int64:
		return decimal.NewFromInt(d), nil
	case uint8:
		return decimal.NewFromInt(int64(d)), nil
	case uint16:
		return decimal.NewFromInt(int64(d)), nil
	case uint32:
		return decimal.NewFromInt(int64(d)), nil
	case float32:
		if math.IsNaN(float64(d)) || math.IsInf(float64(d), 0) {
			return decimal.Decimal{}, unsupported(v, "NaN and infinity have no decimal form")
		}
		return decimal.NewFromFloat32(d), nil
	case float64:
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return decimal.Decimal{}, unsupported(v, "NaN and infinity have no decimal form")
		}
		return decimal.NewFromFloat(d), nil
	}

	return decimal.Decimal{}, mismatch(v, DataType{Name: TypeDecimal})
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func mismatch(v interface{}, t DataType) error {
	return fmt.Errorf("%w: cannot encode %T as %s", ErrInvalidValue, v, t)
}

// DecodeScalar recovers the Go value of an encoded scalar of type t.
// UUIDs decode to their canonical string, decimals to decimal.Decimal,
// uint256 to its base-10 string and null to nil.
func DecodeScalar(data []byte, t DataType) (interface{}, error) {
	if len(data) == 0 {
		return nil, Malformed("scalar: missing presence flag")
	}

	switch data[0] {
	case nullFlag:
		if len(data) != 1 {
			return nil, Malformed("scalar: null marker followed by %d bytes", len(data)-1)
		}
		return nil, nil
	case presentFlag:
	default:
		return nil, Malformed("scalar: invalid presence flag %d", data[0])
	}

	payload := data[1:]

	switch t.Name {
	case TypeText:
		return string(payload), nil
	case TypeBlob:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case TypeInt:
		if len(payload) != 8 {
			return nil, Malformed("int: need 8 bytes, have %d", len(payload))
		}
		return int64(binary.LittleEndian.Uint64(payload)), nil
	case TypeBool:
		if len(payload) != 1 || payload[0] > 1 {
			return nil, Malformed("bool: invalid payload %x", payload)
		}
		return payload[0] == 1, nil
	case TypeUUID:
		u, err := uuid.FromBytes(payload)
		if err != nil {
			return nil, Malformed("uuid: %v", err)
		}
		return u.String(), nil
	case TypeDecimal:
		d, err := decimal.NewFromString(string(payload))
		if err != nil {
			return nil, Malformed("decimal: %v", err)
		}
		return d, nil
	case TypeUint256:
		n, err := convert.ParseUnsignedInt(string(payload))
		if err != nil {
			return nil, Malformed("uint256: %v", err)
		}
		return convert.BigIntToString(n), nil
	case TypeNull:
		return nil, Malformed("null type carries a present value")
	}

	return nil, fmt.Errorf("%w: unknown type name %q", ErrInvalidDataType, t.Name)
}
