// Package protocol implements the wire frame and message codec that carry
// commands, exceptions, and reader-cursor operations between a sqliterelay
// leader and its followers.
package protocol

// Kind identifies the shape of a message body. The enumeration is closed:
// a frame whose Kind is not one of these values is a ProtocolError and is
// fatal to the transport.
type Kind uint32

const (
	Unknown Kind = iota
	SendAndWaitRequest
	SendAndWaitResponse
	CreateCommandRequest
	CreateCommandResponse
	DisposeCommand
	CreateCommandException
	ExecuteNonQueryRequest
	ExecuteNonQueryResponse
	ExecuteNonQueryException
	ExecuteReaderRequest
	ExecuteReaderReadRequest
	ExecuteReaderGetOrdinalRequest
	ExecuteReaderGetStringRequest
	ExecuteReaderGetInt16Request
	ExecuteReaderGetInt32Request
	ExecuteReaderGetInt64Request
	ExecuteReaderGetFieldTypeRequest
	ExecuteReaderResponse
	ExecuteReaderException
)

func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case SendAndWaitRequest:
		return "SendAndWaitRequest"
	case SendAndWaitResponse:
		return "SendAndWaitResponse"
	case CreateCommandRequest:
		return "CreateCommandRequest"
	case CreateCommandResponse:
		return "CreateCommandResponse"
	case DisposeCommand:
		return "DisposeCommand"
	case CreateCommandException:
		return "CreateCommandException"
	case ExecuteNonQueryRequest:
		return "ExecuteNonQueryRequest"
	case ExecuteNonQueryResponse:
		return "ExecuteNonQueryResponse"
	case ExecuteNonQueryException:
		return "ExecuteNonQueryException"
	case ExecuteReaderRequest:
		return "ExecuteReaderRequest"
	case ExecuteReaderReadRequest:
		return "ExecuteReaderReadRequest"
	case ExecuteReaderGetOrdinalRequest:
		return "ExecuteReaderGetOrdinalRequest"
	case ExecuteReaderGetStringRequest:
		return "ExecuteReaderGetStringRequest"
	case ExecuteReaderGetInt16Request:
		return "ExecuteReaderGetInt16Request"
	case ExecuteReaderGetInt32Request:
		return "ExecuteReaderGetInt32Request"
	case ExecuteReaderGetInt64Request:
		return "ExecuteReaderGetInt64Request"
	case ExecuteReaderGetFieldTypeRequest:
		return "ExecuteReaderGetFieldTypeRequest"
	case ExecuteReaderResponse:
		return "ExecuteReaderResponse"
	case ExecuteReaderException:
		return "ExecuteReaderException"
	default:
		return "Kind(?)"
	}
}

// Valid reports whether k is one of the closed enumeration's members.
func (k Kind) Valid() bool {
	return k > Unknown && k <= ExecuteReaderException
}

// SQLiteType is the column/value type code carried in column descriptors
// and in FieldType typed-value responses.
type SQLiteType uint8

const (
	TypeInteger SQLiteType = iota
	TypeReal
	TypeText
	TypeBlob
	TypeNull
)

func (t SQLiteType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeReal:
		return "Real"
	case TypeText:
		return "Text"
	case TypeBlob:
		return "Blob"
	case TypeNull:
		return "Null"
	default:
		return "Unknown"
	}
}
