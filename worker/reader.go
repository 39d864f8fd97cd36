package worker

import (
	"errors"
	"time"

	"github.com/dataux/sqliterelay/protocol"
	"github.com/dataux/sqliterelay/transport"
)

// Reader is a reader worker: born when ExecuteReaderRequest succeeds, it
// holds the same statement handle as its parent Command plus an in-memory
// copy of the column descriptors. It does no client-side row caching —
// each Get* forwards to the leader.
type Reader struct {
	t      *transport.Transport
	handle protocol.Handle
	cols   []protocol.ColumnDescriptor
}

// Columns returns the cached column descriptors from ExecuteReaderRequest.
func (r *Reader) Columns() []protocol.ColumnDescriptor { return r.cols }

// Read sends ExecuteReaderReadRequest and returns has_row.
func (r *Reader) Read(timeout time.Duration) (bool, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderReadRequest, protocol.EncodeHandleOnly(r.handle), timeout)
	if err != nil {
		return false, err
	}
	if reply.Kind == protocol.ExecuteReaderException {
		msg, derr := protocol.DecodeExceptionMessage(reply.Body)
		if derr != nil {
			return false, derr
		}
		return false, &ServerError{Message: msg}
	}
	if reply.Kind != protocol.ExecuteReaderResponse {
		return false, errors.New("worker: unexpected response kind for ExecuteReaderReadRequest")
	}
	return protocol.DecodeExecuteReaderHasRow(reply.Body)
}

// GetOrdinal sends ExecuteReaderGetOrdinalRequest; a name with no match
// returns -1, not an error.
func (r *Reader) GetOrdinal(timeout time.Duration, name string) (int32, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetOrdinalRequest, protocol.EncodeExecuteReaderGetOrdinalRequest(r.handle, name), timeout)
	if err != nil {
		return 0, err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return 0, err
	}
	return v.Int32, nil
}

// GetString sends ExecuteReaderGetStringRequest.
func (r *Reader) GetString(timeout time.Duration, ordinal uint16) (string, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetStringRequest, protocol.EncodeExecuteReaderGetRequest(r.handle, ordinal), timeout)
	if err != nil {
		return "", err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return "", err
	}
	return v.String, nil
}

// GetInt16 sends ExecuteReaderGetInt16Request.
func (r *Reader) GetInt16(timeout time.Duration, ordinal uint16) (int16, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetInt16Request, protocol.EncodeExecuteReaderGetRequest(r.handle, ordinal), timeout)
	if err != nil {
		return 0, err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return 0, err
	}
	return v.Int16, nil
}

// GetInt32 sends ExecuteReaderGetInt32Request.
func (r *Reader) GetInt32(timeout time.Duration, ordinal uint16) (int32, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetInt32Request, protocol.EncodeExecuteReaderGetRequest(r.handle, ordinal), timeout)
	if err != nil {
		return 0, err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return 0, err
	}
	return v.Int32, nil
}

// GetInt64 sends ExecuteReaderGetInt64Request.
func (r *Reader) GetInt64(timeout time.Duration, ordinal uint16) (int64, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetInt64Request, protocol.EncodeExecuteReaderGetRequest(r.handle, ordinal), timeout)
	if err != nil {
		return 0, err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// GetFieldType sends ExecuteReaderGetFieldTypeRequest.
func (r *Reader) GetFieldType(timeout time.Duration, ordinal uint16) (protocol.SQLiteType, error) {
	reply, err := r.t.SendAndWait(protocol.ExecuteReaderGetFieldTypeRequest, protocol.EncodeExecuteReaderGetRequest(r.handle, ordinal), timeout)
	if err != nil {
		return 0, err
	}
	v, err := decodeValueReply(reply)
	if err != nil {
		return 0, err
	}
	return v.SQLiteType, nil
}

// Dispose sends DisposeCommand and swallows any error (best-effort,
// idempotent; matches Command.Dispose since both share one handle).
func (r *Reader) Dispose(timeout time.Duration) {
	_ = r.t.Send(protocol.DisposeCommand, protocol.EncodeHandleOnly(r.handle))
}

func decodeValueReply(reply protocol.Message) (protocol.Value, error) {
	if reply.Kind == protocol.ExecuteReaderException {
		msg, err := protocol.DecodeExceptionMessage(reply.Body)
		if err != nil {
			return protocol.Value{}, err
		}
		return protocol.Value{}, &ServerError{Message: msg}
	}
	if reply.Kind != protocol.ExecuteReaderResponse {
		return protocol.Value{}, errors.New("worker: unexpected response kind for typed value request")
	}
	return protocol.DecodeValue(reply.Body)
}
