package encoding

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"
	"testing/quick"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestScalarRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		input interface{}
		typ   string
		want  interface{}
	}{
		{"text", "hello world", TypeText, "hello world"},
		{"empty text", "", TypeText, ""},
		{"unicode text", "héllo 世界", TypeText, "héllo 世界"},
		{"int", int64(-42), TypeInt, int64(-42)},
		{"int max", int64(math.MaxInt64), TypeInt, int64(math.MaxInt64)},
		{"int min", int64(math.MinInt64), TypeInt, int64(math.MinInt64)},
		{"small int", int8(7), TypeInt, int64(7)},
		{"uint32", uint32(4000000000), TypeInt, int64(4000000000)},
		{"true", true, TypeBool, true},
		{"false", false, TypeBool, false},
		{"uuid", "0f8fad5b-d9cb-469f-a165-70867728950e", TypeUUID, "0f8fad5b-d9cb-469f-a165-70867728950e"},
		{"blob", []byte{0x00, 0xff, 0x10}, TypeBlob, []byte{0x00, 0xff, 0x10}},
		{"empty blob", []byte{}, TypeBlob, []byte{}},
		{"null", nil, TypeNull, nil},
		{"whole float", 2.0, TypeInt, int64(2)},
		{"whole float32", float32(-3), TypeInt, int64(-3)},
		{"float", 1.5, TypeDecimal, decimal.RequireFromString("1.5")},
		{"negative float", -0.25, TypeDecimal, decimal.RequireFromString("-0.25")},
		{"float32", float32(0.1), TypeDecimal, decimal.RequireFromString("0.1")},
		{"huge float", 1e20, TypeDecimal, decimal.RequireFromString("100000000000000000000")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, typ, err := EncodeScalar(tc.input)
			if err != nil {
				t.Fatalf("EncodeScalar failed: %v", err)
			}
			if typ.Name != tc.typ {
				t.Fatalf("Get type=%s, want=%s", typ.Name, tc.typ)
			}

			get, err := DecodeScalar(data, typ)
			if err != nil {
				t.Fatalf("DecodeScalar failed: %v", err)
			}

			if b, ok := tc.want.([]byte); ok {
				if !bytes.Equal(get.([]byte), b) {
					t.Fatalf("Get=%v, want=%v", get, b)
				}
				return
			}

			// Floats travel as their shortest base-10 text, never as IEEE bytes.
			if d, ok := tc.want.(decimal.Decimal); ok {
				if string(data[1:]) != d.String() {
					t.Fatalf("Get text=%q, want=%q", data[1:], d.String())
				}
				if !get.(decimal.Decimal).Equal(d) {
					t.Fatalf("Get=%v, want=%v", get, d)
				}
				return
			}

			if get != tc.want {
				t.Fatalf("Get=%v (%T), want=%v (%T)", get, get, tc.want, tc.want)
			}
		})
	}
}

func TestScalarRoundTripRandom(t *testing.T) {
	roundTrip := func(v interface{}) (interface{}, DataType, error) {
		data, typ, err := EncodeScalar(v)
		if err != nil {
			return nil, typ, err
		}
		get, err := DecodeScalar(data, typ)
		return get, typ, err
	}

	text := func(s string) bool {
		get, typ, err := roundTrip(s)
		if err != nil {
			return false
		}
		// Random strings almost never parse as UUIDs, but those that do come back canonical.
		if typ.Name == TypeUUID {
			return get == uuid.MustParse(s).String()
		}
		return typ.Name == TypeText && get == s
	}
	integer := func(i int64) bool {
		get, typ, err := roundTrip(i)
		return err == nil && typ.Name == TypeInt && get == i
	}
	blob := func(b []byte) bool {
		if b == nil {
			b = []byte{}
		}
		get, typ, err := roundTrip(b)
		return err == nil && typ.Name == TypeBlob && bytes.Equal(get.([]byte), b)
	}
	boolean := func(b bool) bool {
		get, typ, err := roundTrip(b)
		return err == nil && typ.Name == TypeBool && get == b
	}

	for name, f := range map[string]interface{}{"text": text, "int": integer, "blob": blob, "bool": boolean} {
		if err := quick.Check(f, nil); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"1.50", "-0.001", "123456789.123456789", "10"} {
		d := decimal.RequireFromString(s)
		data, typ, err := EncodeScalar(d)
		if err != nil {
			t.Fatal(err)
		}
		if typ.Name != TypeDecimal {
			t.Fatalf("Get type=%s, want decimal", typ.Name)
		}
		if string(data[1:]) != s {
			t.Fatalf("Decimal text=%q, want %q", data[1:], s)
		}

		get, err := DecodeScalar(data, typ)
		if err != nil {
			t.Fatal(err)
		}
		if !get.(decimal.Decimal).Equal(d) {
			t.Fatalf("Get=%v, want=%v", get, d)
		}
	}

	_, typ, _ := EncodeScalar(decimal.RequireFromString("123.45"))
	if typ.Metadata != [2]uint16{5, 2} {
		t.Fatalf("Get metadata=%v, want [5 2]", typ.Metadata)
	}
}

func TestNullDistinctFromEmpty(t *testing.T) {
	null, _, _ := EncodeScalar(nil)
	empty, _, _ := EncodeScalar("")

	if !bytes.Equal(null, []byte{0x00}) {
		t.Fatalf("Get null=%x, want 00", null)
	}
	if !bytes.Equal(empty, []byte{0x01}) {
		t.Fatalf("Get empty text=%x, want 01", empty)
	}

	var nilPtr *string
	data, typ, err := EncodeScalar(nilPtr)
	if err != nil || typ.Name != TypeNull || !bytes.Equal(data, null) {
		t.Fatalf("nil pointer must encode as null, get=%x type=%s err=%v", data, typ.Name, err)
	}

	s := "x"
	data, typ, err = EncodeScalar(&s)
	if err != nil || typ.Name != TypeText || !bytes.Equal(data, []byte{0x01, 'x'}) {
		t.Fatalf("pointer must encode its target, get=%x type=%s err=%v", data, typ.Name, err)
	}
}

func TestScalarWireBytes(t *testing.T) {
	testCases := []struct {
		input interface{}
		want  []byte
	}{
		{int64(1), []byte{0x01, 0x01, 0, 0, 0, 0, 0, 0, 0}},
		{int64(-1), []byte{0x01, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
		{int(258), []byte{0x01, 0x02, 0x01, 0, 0, 0, 0, 0, 0}},
		{true, []byte{0x01, 0x01}},
		{false, []byte{0x01, 0x00}},
		{"ab", []byte{0x01, 'a', 'b'}},
		{[]byte{0xde, 0xad}, []byte{0x01, 0xde, 0xad}},
	}

	for _, tc := range testCases {
		get, _, err := EncodeScalar(tc.input)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(get, tc.want) {
			t.Fatalf("EncodeScalar(%v)=%x, want %x", tc.input, get, tc.want)
		}
	}
}

func TestUUIDDetection(t *testing.T) {
	u := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

	data, typ, err := EncodeScalar(u.String())
	if err != nil || typ.Name != TypeUUID {
		t.Fatalf("canonical uuid string must encode as uuid, type=%s err=%v", typ.Name, err)
	}
	if !bytes.Equal(data[1:], u[:]) || len(data) != 17 {
		t.Fatalf("Get=%x, want 01%x", data, u[:])
	}

	data, typ, _ = EncodeScalar(u)
	if typ.Name != TypeUUID || !bytes.Equal(data[1:], u[:]) {
		t.Fatalf("uuid.UUID must encode to its 16 bytes")
	}

	// Only the hyphenated form is treated as a uuid.
	for _, s := range []string{
		"0f8fad5bd9cb469fa16570867728950e",
		"{0f8fad5b-d9cb-469f-a165-70867728950e}",
		"0f8fad5b-d9cb-469f-a165-70867728950z",
	} {
		_, typ, _ := EncodeScalar(s)
		if typ.Name != TypeText {
			t.Fatalf("%q must encode as text, get %s", s, typ.Name)
		}
	}
}

func TestUnsupportedScalar(t *testing.T) {
	for _, v := range []interface{}{
		big.NewInt(10), *big.NewInt(10), math.NaN(), math.Inf(1), float32(math.Inf(-1)), struct{}{}, map[string]int{},
	} {
		_, _, err := EncodeScalar(v)
		if !errors.Is(err, ErrUnsupportedScalar) {
			t.Fatalf("EncodeScalar(%T) error=%v, want ErrUnsupportedScalar", v, err)
		}
	}
}

func TestScalarRange(t *testing.T) {
	_, _, err := EncodeScalar(uint64(math.MaxUint64))
	if !errors.Is(err, ErrEncodingRange) {
		t.Fatalf("Get error=%v, want ErrEncodingRange", err)
	}

	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) || rangeErr.Field != "int" {
		t.Fatalf("Get error=%v, want *RangeError for int", err)
	}

	if _, _, err := EncodeScalar(uint64(math.MaxInt64)); err != nil {
		t.Fatalf("MaxInt64 must fit: %v", err)
	}
}

func TestEncodeScalarAs(t *testing.T) {
	dec, _ := DecimalType(10, 2)

	testCases := []struct {
		input interface{}
		typ   DataType
		want  interface{}
	}{
		{"42", IntType, int64(42)},
		{int32(42), IntType, int64(42)},
		{"true", BoolType, true},
		{"0F8FAD5B-D9CB-469F-A165-70867728950E", UUIDType, "0f8fad5b-d9cb-469f-a165-70867728950e"},
		{"raw", BlobType, []byte("raw")},
		{"12.5", dec, "12.50"},
		{int64(3), dec, "3.00"},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", Uint256Type,
			"115792089237316195423570985008687907853269984665640564039457584007913129639935"},
		{uint64(5), Uint256Type, "5"},
		{nil, TextType, nil},
	}

	for _, tc := range testCases {
		data, err := EncodeScalarAs(tc.input, tc.typ)
		if err != nil {
			t.Fatalf("EncodeScalarAs(%v, %s) failed: %v", tc.input, tc.typ, err)
		}

		get, err := DecodeScalar(data, tc.typ)
		if err != nil {
			t.Fatal(err)
		}

		switch want := tc.want.(type) {
		case []byte:
			if !bytes.Equal(get.([]byte), want) {
				t.Fatalf("Get=%v, want=%v", get, want)
			}
		case string:
			if d, ok := get.(decimal.Decimal); ok {
				if string(data[1:]) != want {
					t.Fatalf("Get decimal text=%s, want=%s", data[1:], want)
				}
				if !d.Equal(decimal.RequireFromString(want)) {
					t.Fatalf("Get=%v, want=%s", d, want)
				}
				continue
			}
			if get != want {
				t.Fatalf("Get=%v, want=%v", get, want)
			}
		default:
			if get != tc.want {
				t.Fatalf("Get=%v, want=%v", get, tc.want)
			}
		}
	}
}

func TestEncodeScalarAsErrors(t *testing.T) {
	dec, _ := DecimalType(4, 2)

	testCases := []struct {
		input interface{}
		typ   DataType
		want  error
	}{
		{"abc", IntType, ErrInvalidValue},
		{123, TextType, ErrInvalidValue},
		{"not-a-uuid", UUIDType, ErrInvalidValue},
		{"123.456", dec, ErrEncodingRange},
		{"1000", dec, ErrEncodingRange},
		{"-1", Uint256Type, ErrInvalidValue},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639936", Uint256Type, ErrEncodingRange},
		{"x", TextType.Array(), ErrInvalidDataType},
		{"x", DataType{Name: "varchar"}, ErrInvalidDataType},
	}

	for _, tc := range testCases {
		_, err := EncodeScalarAs(tc.input, tc.typ)
		if !errors.Is(err, tc.want) {
			t.Fatalf("EncodeScalarAs(%v, %s) error=%v, want %v", tc.input, tc.typ, err, tc.want)
		}
	}
}

func TestDecodeScalarMalformed(t *testing.T) {
	testCases := []struct {
		data []byte
		typ  DataType
	}{
		{nil, TextType},
		{[]byte{0x02, 'a'}, TextType},
		{[]byte{0x00, 0x00}, TextType},
		{[]byte{0x01, 0x01, 0x02}, IntType},
		{[]byte{0x01, 0x02}, BoolType},
		{[]byte{0x01, 0x01, 0x02}, UUIDType},
		{[]byte{0x01, 'x'}, DataType{Name: TypeDecimal, Metadata: [2]uint16{1, 0}}},
		{[]byte{0x01}, NullType},
	}

	for _, tc := range testCases {
		_, err := DecodeScalar(tc.data, tc.typ)
		if !errors.Is(err, ErrMalformedDecode) {
			t.Fatalf("DecodeScalar(%x, %s) error=%v, want ErrMalformedDecode", tc.data, tc.typ, err)
		}
	}
}
