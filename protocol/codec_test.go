package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	m := Message{Kind: ExecuteNonQueryRequest, Correlation: 42, Body: []byte("body")}
	got, err := Decode(Encode(m))
	assert.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecodeShortMessage(t *testing.T) {
	_, err := Decode(make([]byte, envelopeLen-1))
	assert.Error(t, err)
}

func TestCreateCommandRequestRoundTrip(t *testing.T) {
	body := EncodeCreateCommandRequest("select 1")
	sql, err := DecodeCreateCommandRequest(body)
	assert.NoError(t, err)
	assert.Equal(t, "select 1", sql)
}

func TestCreateCommandResponseRoundTrip(t *testing.T) {
	h := NewHandle()
	got, err := DecodeCreateCommandResponse(EncodeCreateCommandResponse(h))
	assert.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestExceptionMessageRoundTrip(t *testing.T) {
	msg, err := DecodeExceptionMessage(EncodeExceptionMessage("no such table: foo"))
	assert.NoError(t, err)
	assert.Equal(t, "no such table: foo", msg)
}

func TestExecuteNonQueryResponseRoundTrip(t *testing.T) {
	n, err := DecodeExecuteNonQueryResponse(EncodeExecuteNonQueryResponse(7))
	assert.NoError(t, err)
	assert.Equal(t, int32(7), n)
}

func TestExecuteReaderRequestRoundTrip(t *testing.T) {
	h := NewHandle()
	gotH, gotB, err := DecodeExecuteReaderRequest(EncodeExecuteReaderRequest(h, 3))
	assert.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, uint32(3), gotB)
}

func TestExecuteReaderColumnsRoundTrip(t *testing.T) {
	cols := []ColumnDescriptor{
		{Name: "id", SQLiteType: TypeInteger},
		{Name: "name", SQLiteType: TypeText},
	}
	got, err := DecodeExecuteReaderColumns(EncodeExecuteReaderColumns(cols))
	assert.NoError(t, err)
	assert.Equal(t, cols, got)
}

func TestExecuteReaderColumnsEmpty(t *testing.T) {
	got, err := DecodeExecuteReaderColumns(EncodeExecuteReaderColumns(nil))
	assert.NoError(t, err)
	assert.Len(t, got, 0)
}

func TestExecuteReaderHasRowRoundTrip(t *testing.T) {
	got, err := DecodeExecuteReaderHasRow(EncodeExecuteReaderHasRow(true))
	assert.NoError(t, err)
	assert.True(t, got)

	got, err = DecodeExecuteReaderHasRow(EncodeExecuteReaderHasRow(false))
	assert.NoError(t, err)
	assert.False(t, got)
}

func TestExecuteReaderGetOrdinalRequestRoundTrip(t *testing.T) {
	h := NewHandle()
	gotH, name, err := DecodeExecuteReaderGetOrdinalRequest(EncodeExecuteReaderGetOrdinalRequest(h, "col"))
	assert.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, "col", name)
}

func TestExecuteReaderGetRequestRoundTrip(t *testing.T) {
	h := NewHandle()
	gotH, ord, err := DecodeExecuteReaderGetRequest(EncodeExecuteReaderGetRequest(h, 3))
	assert.NoError(t, err)
	assert.Equal(t, h, gotH)
	assert.Equal(t, uint16(3), ord)
}

func TestTypedValueRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		want Value
	}{
		{"null", EncodeNullValue(), Value{Tag: TagNull}},
		{"int16", EncodeInt16Value(-7), Value{Tag: TagInt16, Int16: -7}},
		{"int32", EncodeInt32Value(-70000), Value{Tag: TagInt32, Int32: -70000}},
		{"int64", EncodeInt64Value(1 << 40), Value{Tag: TagInt64, Int64: 1 << 40}},
		{"string", EncodeStringValue("hi"), Value{Tag: TagString, String: "hi"}},
		{"fieldtype", EncodeFieldTypeValue(TypeReal), Value{Tag: TagFieldType, SQLiteType: TypeReal}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := DecodeValue(c.body)
			assert.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestDecodeValueUnknownTag(t *testing.T) {
	_, err := DecodeValue([]byte{0xff})
	assert.Error(t, err)
}

func TestKindValid(t *testing.T) {
	assert.False(t, Unknown.Valid())
	assert.True(t, CreateCommandRequest.Valid())
	assert.True(t, ExecuteReaderException.Valid())
	assert.False(t, Kind(255).Valid())
}
