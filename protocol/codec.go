package protocol

import (
	"encoding/binary"
	"fmt"
)

// envelopeLen is the fixed-size header every message body carries ahead of
// its kind-specific payload: kind:u32 LE | correlation:u64 LE.
const envelopeLen = 4 + 8

// Message is a decoded wire message: the envelope plus the undecoded
// kind-specific body.
type Message struct {
	Kind        Kind
	Correlation uint64
	Body        []byte
}

// Encode produces the full frame payload (envelope + body) for m.
func Encode(m Message) []byte {
	out := make([]byte, envelopeLen+len(m.Body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(m.Kind))
	binary.LittleEndian.PutUint64(out[4:12], m.Correlation)
	copy(out[envelopeLen:], m.Body)
	return out
}

// Decode parses a frame payload into a Message. It does not check that
// Kind is a member of the enumeration; callers should check m.Kind.Valid().
func Decode(payload []byte) (Message, error) {
	if len(payload) < envelopeLen {
		return Message{}, fmt.Errorf("protocol: short message: need %d bytes, have %d", envelopeLen, len(payload))
	}
	kind := Kind(binary.LittleEndian.Uint32(payload[0:4]))
	corr := binary.LittleEndian.Uint64(payload[4:12])
	body := payload[envelopeLen:]
	return Message{Kind: kind, Correlation: corr, Body: body}, nil
}

// --- string encoding: u32 LE byte-length prefix, UTF-8 bytes ---

func appendString(b []byte, s string) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	b = append(b, lenBuf[:]...)
	return append(b, s...)
}

func readString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, fmt.Errorf("protocol: short string length prefix")
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	if uint32(len(b)-4) < n {
		return "", 0, fmt.Errorf("protocol: short string: need %d bytes, have %d", n, len(b)-4)
	}
	s := string(b[4 : 4+n])
	return s, int(4 + n), nil
}

// --- CreateCommandRequest { sql: string } ---

func EncodeCreateCommandRequest(sql string) []byte {
	return appendString(nil, sql)
}

func DecodeCreateCommandRequest(body []byte) (sql string, err error) {
	sql, _, err = readString(body)
	return sql, err
}

// --- CreateCommandResponse { handle: u128 } ---

func EncodeCreateCommandResponse(h Handle) []byte {
	return AppendHandle(nil, h)
}

func DecodeCreateCommandResponse(body []byte) (Handle, error) {
	h, _, err := readHandle(body)
	return h, err
}

// --- CreateCommandException / ExecuteNonQueryException / ExecuteReaderException { message: string } ---

func EncodeExceptionMessage(msg string) []byte {
	return appendString(nil, msg)
}

func DecodeExceptionMessage(body []byte) (string, error) {
	msg, _, err := readString(body)
	return msg, err
}

// --- DisposeCommand / ExecuteNonQueryRequest / ExecuteReaderReadRequest { handle: u128 } ---

func EncodeHandleOnly(h Handle) []byte {
	return AppendHandle(nil, h)
}

func DecodeHandleOnly(body []byte) (Handle, error) {
	h, _, err := readHandle(body)
	return h, err
}

// --- ExecuteNonQueryResponse { changes: i32 } ---

func EncodeExecuteNonQueryResponse(changes int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(changes))
	return b
}

func DecodeExecuteNonQueryResponse(body []byte) (int32, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("protocol: short ExecuteNonQueryResponse body")
	}
	return int32(binary.LittleEndian.Uint32(body[0:4])), nil
}

// --- ExecuteReaderRequest { handle: u128 | behavior: u32 } ---

func EncodeExecuteReaderRequest(h Handle, behavior uint32) []byte {
	b := AppendHandle(nil, h)
	var behaviorBuf [4]byte
	binary.LittleEndian.PutUint32(behaviorBuf[:], behavior)
	return append(b, behaviorBuf[:]...)
}

func DecodeExecuteReaderRequest(body []byte) (h Handle, behavior uint32, err error) {
	h, n, err := readHandle(body)
	if err != nil {
		return ZeroHandle, 0, err
	}
	if len(body)-n < 4 {
		return ZeroHandle, 0, fmt.Errorf("protocol: short ExecuteReaderRequest body")
	}
	behavior = binary.LittleEndian.Uint32(body[n : n+4])
	return h, behavior, nil
}

// ColumnDescriptor describes one result column; ordinal is implicit in
// slice position.
type ColumnDescriptor struct {
	Name       string
	SQLiteType SQLiteType
}

// --- ExecuteReaderResponse (initial) { columns: u16 | [ {name, sqlite_type} ] } ---

func EncodeExecuteReaderColumns(cols []ColumnDescriptor) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(len(cols)))
	for _, c := range cols {
		b = appendString(b, c.Name)
		b = append(b, byte(c.SQLiteType))
	}
	return b
}

func DecodeExecuteReaderColumns(body []byte) ([]ColumnDescriptor, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("protocol: short ExecuteReaderResponse(columns) body")
	}
	n := binary.LittleEndian.Uint16(body[0:2])
	off := 2
	cols := make([]ColumnDescriptor, 0, n)
	for i := uint16(0); i < n; i++ {
		name, used, err := readString(body[off:])
		if err != nil {
			return nil, err
		}
		off += used
		if off >= len(body) {
			return nil, fmt.Errorf("protocol: short ExecuteReaderResponse(columns) body: missing type byte")
		}
		cols = append(cols, ColumnDescriptor{Name: name, SQLiteType: SQLiteType(body[off])})
		off++
	}
	return cols, nil
}

// --- ExecuteReaderReadRequest uses EncodeHandleOnly/DecodeHandleOnly ---

// --- ExecuteReaderResponse (read) { has_row: u8 } ---

func EncodeExecuteReaderHasRow(hasRow bool) []byte {
	if hasRow {
		return []byte{1}
	}
	return []byte{0}
}

func DecodeExecuteReaderHasRow(body []byte) (bool, error) {
	if len(body) < 1 {
		return false, fmt.Errorf("protocol: short ExecuteReaderResponse(has_row) body")
	}
	return body[0] != 0, nil
}

// --- ExecuteReaderGetOrdinalRequest { handle: u128 | name: string } ---

func EncodeExecuteReaderGetOrdinalRequest(h Handle, name string) []byte {
	b := AppendHandle(nil, h)
	return appendString(b, name)
}

func DecodeExecuteReaderGetOrdinalRequest(body []byte) (h Handle, name string, err error) {
	h, n, err := readHandle(body)
	if err != nil {
		return ZeroHandle, "", err
	}
	name, _, err = readString(body[n:])
	return h, name, err
}

// --- ExecuteReaderGet{Int16,Int32,Int64,String,FieldType}Request { handle: u128 | ordinal: u16 } ---

func EncodeExecuteReaderGetRequest(h Handle, ordinal uint16) []byte {
	b := AppendHandle(nil, h)
	var ordBuf [2]byte
	binary.LittleEndian.PutUint16(ordBuf[:], ordinal)
	return append(b, ordBuf[:]...)
}

func DecodeExecuteReaderGetRequest(body []byte) (h Handle, ordinal uint16, err error) {
	h, n, err := readHandle(body)
	if err != nil {
		return ZeroHandle, 0, err
	}
	if len(body)-n < 2 {
		return ZeroHandle, 0, fmt.Errorf("protocol: short ExecuteReaderGet*Request body")
	}
	ordinal = binary.LittleEndian.Uint16(body[n : n+2])
	return h, ordinal, nil
}

// Typed-value tags for ExecuteReaderResponse (typed). This is an open
// question left unresolved upstream; we fix one reasonable tag set and use
// it consistently.
type ValueTag uint8

const (
	TagNull ValueTag = iota
	TagInt16
	TagInt32
	TagInt64
	TagString
	TagFieldType
)

// Value is a decoded typed-value response: exactly one of the fields below
// is meaningful, selected by Tag.
type Value struct {
	Tag        ValueTag
	Int16      int16
	Int32      int32
	Int64      int64
	String     string
	SQLiteType SQLiteType
}

// --- ExecuteReaderResponse (typed) { tag: u8 | payload } ---

func EncodeNullValue() []byte { return []byte{byte(TagNull)} }

func EncodeInt16Value(v int16) []byte {
	b := make([]byte, 3)
	b[0] = byte(TagInt16)
	binary.LittleEndian.PutUint16(b[1:], uint16(v))
	return b
}

func EncodeInt32Value(v int32) []byte {
	b := make([]byte, 5)
	b[0] = byte(TagInt32)
	binary.LittleEndian.PutUint32(b[1:], uint32(v))
	return b
}

func EncodeInt64Value(v int64) []byte {
	b := make([]byte, 9)
	b[0] = byte(TagInt64)
	binary.LittleEndian.PutUint64(b[1:], uint64(v))
	return b
}

func EncodeStringValue(v string) []byte {
	b := []byte{byte(TagString)}
	return appendString(b, v)
}

func EncodeFieldTypeValue(t SQLiteType) []byte {
	return []byte{byte(TagFieldType), byte(t)}
}

func DecodeValue(body []byte) (Value, error) {
	if len(body) < 1 {
		return Value{}, fmt.Errorf("protocol: short typed-value body")
	}
	tag := ValueTag(body[0])
	rest := body[1:]
	switch tag {
	case TagNull:
		return Value{Tag: tag}, nil
	case TagInt16:
		if len(rest) < 2 {
			return Value{}, fmt.Errorf("protocol: short Int16 value")
		}
		return Value{Tag: tag, Int16: int16(binary.LittleEndian.Uint16(rest))}, nil
	case TagInt32:
		if len(rest) < 4 {
			return Value{}, fmt.Errorf("protocol: short Int32 value")
		}
		return Value{Tag: tag, Int32: int32(binary.LittleEndian.Uint32(rest))}, nil
	case TagInt64:
		if len(rest) < 8 {
			return Value{}, fmt.Errorf("protocol: short Int64 value")
		}
		return Value{Tag: tag, Int64: int64(binary.LittleEndian.Uint64(rest))}, nil
	case TagString:
		s, _, err := readString(rest)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, String: s}, nil
	case TagFieldType:
		if len(rest) < 1 {
			return Value{}, fmt.Errorf("protocol: short FieldType value")
		}
		return Value{Tag: tag, SQLiteType: SQLiteType(rest[0])}, nil
	default:
		return Value{}, fmt.Errorf("protocol: unknown value tag %d", tag)
	}
}
