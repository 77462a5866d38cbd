package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const dataTypeVersion = 0

// Type names understood by nodes.
const (
	TypeInt     = "int"
	TypeText    = "text"
	TypeBool    = "bool"
	TypeBlob    = "blob"
	TypeUUID    = "uuid"
	TypeDecimal = "decimal"
	TypeUint256 = "uint256"
	TypeNull    = "null"
)

// maxDecimalPrecision mirrors the node's numeric limit.
const maxDecimalPrecision = 1000

// Scalar types. Decimal types are built with DecimalType.
var (
	IntType     = DataType{Name: TypeInt}
	TextType    = DataType{Name: TypeText}
	BoolType    = DataType{Name: TypeBool}
	BlobType    = DataType{Name: TypeBlob}
	UUIDType    = DataType{Name: TypeUUID}
	Uint256Type = DataType{Name: TypeUint256}
	NullType    = DataType{Name: TypeNull}
)

var typeAliases = map[string]string{
	"int":     TypeInt,
	"int8":    TypeInt,
	"integer": TypeInt,
	"bigint":  TypeInt,
	"text":    TypeText,
	"string":  TypeText,
	"bool":    TypeBool,
	"boolean": TypeBool,
	"blob":    TypeBlob,
	"bytea":   TypeBlob,
	"uuid":    TypeUUID,
	"decimal": TypeDecimal,
	"numeric": TypeDecimal,
	"uint256": TypeUint256,
	"null":    TypeNull,
}

// DataType describes the declared type of an encoded value.
// Metadata holds (precision, scale) and is only set for decimals.
type DataType struct {
	Name     string    `json:"name"`
	IsArray  bool      `json:"is_array"`
	Metadata [2]uint16 `json:"metadata"`
}

// DecimalType returns decimal(precision, scale).
func DecimalType(precision, scale uint16) (DataType, error) {
	t := DataType{Name: TypeDecimal, Metadata: [2]uint16{precision, scale}}
	if err := t.Validate(); err != nil {
		return DataType{}, err
	}
	return t, nil
}

// Array returns the array type whose elements are t.
func (t DataType) Array() DataType {
	t.IsArray = true
	return t
}

// Elem returns the element type of an array type.
func (t DataType) Elem() DataType {
	t.IsArray = false
	return t
}

// Equals compares name, array flag and metadata.
func (t DataType) Equals(other DataType) bool {
	return t.Name == other.Name && t.IsArray == other.IsArray && t.Metadata == other.Metadata
}

// Validate checks the type name and the metadata invariant.
func (t DataType) Validate() error {
	if _, ok := typeAliases[t.Name]; !ok || typeAliases[t.Name] != t.Name {
		return fmt.Errorf("%w: unknown type name %q", ErrInvalidDataType, t.Name)
	}

	if t.Name != TypeDecimal {
		if t.Metadata != [2]uint16{} {
			return fmt.Errorf("%w: %s cannot carry metadata %v", ErrInvalidDataType, t.Name, t.Metadata)
		}
		return nil
	}

	precision, scale := t.Metadata[0], t.Metadata[1]
	if precision < 1 || precision > maxDecimalPrecision {
		return fmt.Errorf("%w: decimal precision %d must be within [1, %d]", ErrInvalidDataType, precision, maxDecimalPrecision)
	}
	if scale > precision {
		return fmt.Errorf("%w: decimal scale %d exceeds precision %d", ErrInvalidDataType, scale, precision)
	}

	return nil
}

// String renders the type the way schemas spell it, e.g. decimal(10,2)[].
func (t DataType) String() string {
	name := t.Name
	if t.Name == TypeDecimal {
		name = fmt.Sprintf("%s(%d,%d)", name, t.Metadata[0], t.Metadata[1])
	}
	if t.IsArray {
		name += "[]"
	}
	return name
}

// ParseDataType parses strings like "int", "text[]" or "numeric(10,2)".
func ParseDataType(s string) (DataType, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	var t DataType
	if strings.HasSuffix(s, "[]") {
		t.IsArray = true
		s = strings.TrimSuffix(s, "[]")
	}

	if open := strings.Index(s, "("); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return DataType{}, fmt.Errorf("%w: %q", ErrInvalidDataType, s)
		}

		parts := strings.Split(s[open+1:len(s)-1], ",")
		if len(parts) != 2 {
			return DataType{}, fmt.Errorf("%w: %q must have precision and scale", ErrInvalidDataType, s)
		}

		for i, part := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 16)
			if err != nil {
				return DataType{}, fmt.Errorf("%w: %q: %v", ErrInvalidDataType, s, err)
			}
			t.Metadata[i] = uint16(v)
		}

		s = s[:open]
	}

	name, ok := typeAliases[s]
	if !ok {
		return DataType{}, fmt.Errorf("%w: unknown type name %q", ErrInvalidDataType, s)
	}
	t.Name = name

	if err := t.Validate(); err != nil {
		return DataType{}, err
	}

	return t, nil
}

// MarshalBinary encodes the type descriptor. Unlike every other structure
// this block is big-endian; nodes decode it that way.
//
//	[version u16][name length u32][name][is_array u8][precision u16][scale u16]
func (t DataType) MarshalBinary() ([]byte, error) {
	if err := CheckLength("type name", len(t.Name)); err != nil {
		return nil, err
	}

	buf := make([]byte, 2+4+len(t.Name)+1+2+2)
	binary.BigEndian.PutUint16(buf[0:2], dataTypeVersion)
	binary.BigEndian.PutUint32(buf[2:6], uint32(len(t.Name)))
	off := 6 + copy(buf[6:], t.Name)

	if t.IsArray {
		buf[off] = 1
	}
	off++

	binary.BigEndian.PutUint16(buf[off:off+2], t.Metadata[0])
	binary.BigEndian.PutUint16(buf[off+2:off+4], t.Metadata[1])

	return buf, nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (t *DataType) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return Malformed("data type: need at least 6 bytes, have %d", len(data))
	}

	version := binary.BigEndian.Uint16(data[0:2])
	if version != dataTypeVersion {
		return Malformed("data type: unknown version %d", version)
	}

	nameLen := binary.BigEndian.Uint32(data[2:6])
	if uint64(nameLen) > math.MaxInt32 || len(data) != 6+int(nameLen)+1+2+2 {
		return Malformed("data type: name length %d does not match %d bytes", nameLen, len(data))
	}

	off := 6 + int(nameLen)
	name := string(data[6:off])

	var isArray bool
	switch data[off] {
	case 0:
	case 1:
		isArray = true
	default:
		return Malformed("data type: invalid array flag %d", data[off])
	}
	off++

	decoded := DataType{
		Name:    name,
		IsArray: isArray,
		Metadata: [2]uint16{
			binary.BigEndian.Uint16(data[off : off+2]),
			binary.BigEndian.Uint16(data[off+2 : off+4]),
		},
	}
	if err := decoded.Validate(); err != nil {
		return Malformed("data type: %v", err)
	}

	*t = decoded
	return nil
}
