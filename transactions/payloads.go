package transactions

import (
	"errors"
	"fmt"
	"kwil-client/encoding"
	"kwil-client/models"
	"kwil-client/util/convert"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

const payloadVersion = 0

// ParamSigil prefixes every statement and action parameter name.
const ParamSigil = "$"

// ErrInvalidPayload is returned when a payload is rejected before encoding.
var ErrInvalidPayload = errors.New("invalid payload")

var dbidPattern = regexp.MustCompile(`^x[0-9a-f]{56}$`)

// ValidDBID reports whether id has the shape of a database identifier.
func ValidDBID(id string) bool {
	return dbidPattern.MatchString(id)
}

// PayloadType selects the payload encoder of a transaction body.
type PayloadType string

// Payload types.
const (
	PayloadTypeDeploySchema  PayloadType = "deploy_schema"
	PayloadTypeDropSchema    PayloadType = "drop_schema"
	PayloadTypeExecuteAction PayloadType = "execute_action"
	PayloadTypeCallAction    PayloadType = "call_action"
	PayloadTypeTransfer      PayloadType = "transfer"
	PayloadTypeRawStatement  PayloadType = "raw_statement"
)

var payloadTags = map[PayloadType]uint32{
	PayloadTypeDeploySchema:  100,
	PayloadTypeDropSchema:    102,
	PayloadTypeExecuteAction: 103,
	PayloadTypeCallAction:    104,
	PayloadTypeTransfer:      105,
	PayloadTypeRawStatement:  106,
}

// Tag returns the numeric tag hashed into the transaction hash.
func (t PayloadType) Tag() (uint32, bool) {
	tag, ok := payloadTags[t]
	return tag, ok
}

// Valid reports whether t is a known payload type.
func (t PayloadType) Valid() bool {
	_, ok := payloadTags[t]
	return ok
}

func (t PayloadType) String() string {
	return string(t)
}

// Payload is the body of a transaction.
type Payload interface {
	Type() PayloadType
	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// DecodePayload decodes raw payload bytes of the given type.
func DecodePayload(t PayloadType, data []byte) (Payload, error) {
	var p Payload
	switch t {
	case PayloadTypeDeploySchema:
		p = new(DeploySchema)
	case PayloadTypeDropSchema:
		p = new(DropSchema)
	case PayloadTypeExecuteAction:
		p = new(ActionExecution)
	case PayloadTypeCallAction:
		p = new(ActionCall)
	case PayloadTypeTransfer:
		p = new(Transfer)
	case PayloadTypeRawStatement:
		p = new(RawStatement)
	default:
		return nil, fmt.Errorf("%w: unknown payload type %q", ErrInvalidPayload, t)
	}

	if err := p.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return p, nil
}

// NamedValue is a statement parameter.
type NamedValue struct {
	Name  string                 `json:"name"`
	Value *encoding.EncodedValue `json:"value"`
}

// RawStatement executes ad-hoc SQL against a database.
type RawStatement struct {
	Statement  string        `json:"statement"`
	Parameters []*NamedValue `json:"parameters"`
}

var _ Payload = (*RawStatement)(nil)

// Type implements Payload.
func (p *RawStatement) Type() PayloadType {
	return PayloadTypeRawStatement
}

// MarshalBinary encodes
//
//	[version u16][statement][count u16]([name][encoded value])*
func (p *RawStatement) MarshalBinary() ([]byte, error) {
	if err := encoding.CheckLength("statement", len(p.Statement)); err != nil {
		return nil, err
	}
	if err := encoding.CheckCount("parameter", len(p.Parameters)); err != nil {
		return nil, err
	}

	values := make([][]byte, len(p.Parameters))
	for i, param := range p.Parameters {
		if param == nil || param.Value == nil {
			return nil, fmt.Errorf("%w: parameter %d has no value", ErrInvalidPayload, i)
		}
		if !strings.HasPrefix(param.Name, ParamSigil) {
			return nil, fmt.Errorf("%w: parameter %q must start with %q", ErrInvalidPayload, param.Name, ParamSigil)
		}
		if err := encoding.CheckLength("parameter name", len(param.Name)); err != nil {
			return nil, err
		}

		b, err := param.Value.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", param.Name, err)
		}
		if err := encoding.CheckLength("parameter value", len(b)); err != nil {
			return nil, err
		}
		values[i] = b
	}

	w := new(encoding.Writer)
	w.Uint16(payloadVersion)
	w.String(p.Statement)
	w.Uint16(uint16(len(p.Parameters)))
	for i, param := range p.Parameters {
		w.String(param.Name)
		w.Bytes(values[i])
	}

	return w.Result(), nil
}

// UnmarshalBinary decodes a raw statement and rejects trailing bytes.
func (p *RawStatement) UnmarshalBinary(data []byte) error {
	r := encoding.NewReader(data)
	if err := readVersion(r, "raw statement"); err != nil {
		return err
	}

	stmt, err := r.String("statement")
	if err != nil {
		return err
	}

	count, err := r.Uint16("parameter count")
	if err != nil {
		return err
	}

	params := make([]*NamedValue, count)
	for i := range params {
		name, err := r.String("parameter name")
		if err != nil {
			return err
		}
		if !strings.HasPrefix(name, ParamSigil) {
			return encoding.Malformed("parameter %d: name %q has no %q sigil", i, name, ParamSigil)
		}

		value, err := readValue(r, "parameter "+name)
		if err != nil {
			return err
		}
		params[i] = &NamedValue{Name: name, Value: value}
	}

	if err := r.Done("raw statement"); err != nil {
		return err
	}

	p.Statement = stmt
	p.Parameters = params
	return nil
}

// ActionExecution runs an action once per argument list.
type ActionExecution struct {
	DBID      string                     `json:"dbid"`
	Action    string                     `json:"action"`
	Arguments [][]*encoding.EncodedValue `json:"arguments"`
}

var _ Payload = (*ActionExecution)(nil)

// Type implements Payload.
func (p *ActionExecution) Type() PayloadType {
	return PayloadTypeExecuteAction
}

// MarshalBinary encodes
//
//	[version u16][dbid][action][call count u16]([arg count u16][encoded value]*)*
func (p *ActionExecution) MarshalBinary() ([]byte, error) {
	if err := checkTarget(p.DBID, p.Action); err != nil {
		return nil, err
	}
	if err := encoding.CheckCount("call", len(p.Arguments)); err != nil {
		return nil, err
	}

	calls := make([][][]byte, len(p.Arguments))
	for i, args := range p.Arguments {
		encoded, err := marshalValues(args)
		if err != nil {
			return nil, fmt.Errorf("call %d: %w", i, err)
		}
		calls[i] = encoded
	}

	w := new(encoding.Writer)
	w.Uint16(payloadVersion)
	w.String(p.DBID)
	w.String(p.Action)
	w.Uint16(uint16(len(calls)))
	for _, args := range calls {
		w.Uint16(uint16(len(args)))
		for _, arg := range args {
			w.Bytes(arg)
		}
	}

	return w.Result(), nil
}

// UnmarshalBinary decodes an action execution and rejects trailing bytes.
func (p *ActionExecution) UnmarshalBinary(data []byte) error {
	r := encoding.NewReader(data)
	if err := readVersion(r, "action execution"); err != nil {
		return err
	}

	dbid, action, err := readTarget(r)
	if err != nil {
		return err
	}

	count, err := r.Uint16("call count")
	if err != nil {
		return err
	}

	calls := make([][]*encoding.EncodedValue, count)
	for i := range calls {
		if calls[i], err = readValues(r, fmt.Sprintf("call %d", i)); err != nil {
			return err
		}
	}

	if err := r.Done("action execution"); err != nil {
		return err
	}

	p.DBID = dbid
	p.Action = action
	p.Arguments = calls
	return nil
}

// ActionCall is a read-only action call, sent through the call endpoint.
type ActionCall struct {
	DBID      string                   `json:"dbid"`
	Action    string                   `json:"action"`
	Arguments []*encoding.EncodedValue `json:"arguments"`
}

var _ Payload = (*ActionCall)(nil)

// Type implements Payload.
func (p *ActionCall) Type() PayloadType {
	return PayloadTypeCallAction
}

// MarshalBinary encodes
//
//	[version u16][dbid][action][arg count u16][encoded value]*
func (p *ActionCall) MarshalBinary() ([]byte, error) {
	if err := checkTarget(p.DBID, p.Action); err != nil {
		return nil, err
	}

	args, err := marshalValues(p.Arguments)
	if err != nil {
		return nil, err
	}

	w := new(encoding.Writer)
	w.Uint16(payloadVersion)
	w.String(p.DBID)
	w.String(p.Action)
	w.Uint16(uint16(len(args)))
	for _, arg := range args {
		w.Bytes(arg)
	}

	return w.Result(), nil
}

// UnmarshalBinary decodes an action call and rejects trailing bytes.
func (p *ActionCall) UnmarshalBinary(data []byte) error {
	r := encoding.NewReader(data)
	if err := readVersion(r, "action call"); err != nil {
		return err
	}

	dbid, action, err := readTarget(r)
	if err != nil {
		return err
	}

	args, err := readValues(r, "call")
	if err != nil {
		return err
	}

	if err := r.Done("action call"); err != nil {
		return err
	}

	p.DBID = dbid
	p.Action = action
	p.Arguments = args
	return nil
}

// DeploySchema deploys a new database.
type DeploySchema struct {
	Schema *models.Schema `json:"schema"`
}

var _ Payload = (*DeploySchema)(nil)

// Type implements Payload.
func (p *DeploySchema) Type() PayloadType {
	return PayloadTypeDeploySchema
}

// MarshalBinary encodes the version followed by the RLP encoded schema.
func (p *DeploySchema) MarshalBinary() ([]byte, error) {
	if p.Schema == nil || p.Schema.Name == "" {
		return nil, fmt.Errorf("%w: schema must have a name", ErrInvalidPayload)
	}
	return marshalRLP(p.Schema)
}

// UnmarshalBinary decodes a deploy payload.
func (p *DeploySchema) UnmarshalBinary(data []byte) error {
	schema := new(models.Schema)
	if err := unmarshalRLP(data, "deploy schema", schema); err != nil {
		return err
	}
	p.Schema = schema
	return nil
}

// DropSchema drops a database owned by the sender.
type DropSchema struct {
	DBID string `json:"dbid"`
}

var _ Payload = (*DropSchema)(nil)

// Type implements Payload.
func (p *DropSchema) Type() PayloadType {
	return PayloadTypeDropSchema
}

// MarshalBinary encodes the version followed by the RLP encoded dbid.
func (p *DropSchema) MarshalBinary() ([]byte, error) {
	if !ValidDBID(p.DBID) {
		return nil, fmt.Errorf("%w: invalid dbid %q", ErrInvalidPayload, p.DBID)
	}
	return marshalRLP(p)
}

// UnmarshalBinary decodes a drop payload.
func (p *DropSchema) UnmarshalBinary(data []byte) error {
	var body DropSchema
	if err := unmarshalRLP(data, "drop schema", &body); err != nil {
		return err
	}
	if !ValidDBID(body.DBID) {
		return encoding.Malformed("drop schema: invalid dbid %q", body.DBID)
	}
	*p = body
	return nil
}

// Transfer moves Amount from the sender to To.
type Transfer struct {
	To     []byte `json:"to"`
	Amount string `json:"amount"`
}

var _ Payload = (*Transfer)(nil)

// Type implements Payload.
func (p *Transfer) Type() PayloadType {
	return PayloadTypeTransfer
}

// MarshalBinary encodes the version followed by the RLP encoded transfer.
func (p *Transfer) MarshalBinary() ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return marshalRLP(p)
}

// UnmarshalBinary decodes a transfer payload.
func (p *Transfer) UnmarshalBinary(data []byte) error {
	var body Transfer
	if err := unmarshalRLP(data, "transfer", &body); err != nil {
		return err
	}
	if err := body.validate(); err != nil {
		return encoding.Malformed("transfer: %v", err)
	}
	*p = body
	return nil
}

func (p *Transfer) validate() error {
	if len(p.To) != 20 && len(p.To) != 32 {
		return fmt.Errorf("recipient must be 20 or 32 bytes, got %d", len(p.To))
	}
	if _, err := convert.ParseUnsignedInt(p.Amount); err != nil {
		return fmt.Errorf("amount: %v", err)
	}
	return nil
}

func checkTarget(dbid, action string) error {
	if !ValidDBID(dbid) {
		return fmt.Errorf("%w: invalid dbid %q", ErrInvalidPayload, dbid)
	}
	if action == "" {
		return fmt.Errorf("%w: action name is empty", ErrInvalidPayload)
	}
	return encoding.CheckLength("action", len(action))
}

func marshalValues(values []*encoding.EncodedValue) ([][]byte, error) {
	if err := encoding.CheckCount("argument", len(values)); err != nil {
		return nil, err
	}

	out := make([][]byte, len(values))
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("%w: argument %d is nil", ErrInvalidPayload, i)
		}

		b, err := v.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if err := encoding.CheckLength("argument", len(b)); err != nil {
			return nil, err
		}
		out[i] = b
	}

	return out, nil
}

func readVersion(r *encoding.Reader, what string) error {
	version, err := r.Uint16(what + " version")
	if err != nil {
		return err
	}
	if version != payloadVersion {
		return encoding.Malformed("%s: unknown version %d", what, version)
	}
	return nil
}

func readTarget(r *encoding.Reader) (string, string, error) {
	dbid, err := r.String("dbid")
	if err != nil {
		return "", "", err
	}
	if !ValidDBID(dbid) {
		return "", "", encoding.Malformed("invalid dbid %q", dbid)
	}

	action, err := r.String("action")
	if err != nil {
		return "", "", err
	}
	if action == "" {
		return "", "", encoding.Malformed("invalid action name %q", action)
	}

	return dbid, action, nil
}

func readValue(r *encoding.Reader, field string) (*encoding.EncodedValue, error) {
	b, err := r.Bytes(field)
	if err != nil {
		return nil, err
	}

	v := new(encoding.EncodedValue)
	if err := v.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func readValues(r *encoding.Reader, what string) ([]*encoding.EncodedValue, error) {
	count, err := r.Uint16(what + " argument count")
	if err != nil {
		return nil, err
	}

	values := make([]*encoding.EncodedValue, count)
	for i := range values {
		if values[i], err = readValue(r, fmt.Sprintf("%s argument %d", what, i)); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func marshalRLP(v interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := encoding.CheckLength("payload", len(body)+2); err != nil {
		return nil, err
	}

	w := new(encoding.Writer)
	w.Uint16(payloadVersion)
	w.Raw(body)
	return w.Result(), nil
}

func unmarshalRLP(data []byte, what string, v interface{}) error {
	r := encoding.NewReader(data)
	if err := readVersion(r, what); err != nil {
		return err
	}
	if err := rlp.DecodeBytes(r.Rest(), v); err != nil {
		return encoding.Malformed("%s: %v", what, err)
	}
	return nil
}
