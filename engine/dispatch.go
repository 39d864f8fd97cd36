package engine

import (
	u "github.com/araddon/gou"

	"github.com/dataux/sqliterelay/protocol"
)

// Replier is the subset of *transport.Transport the dispatcher needs: the
// ability to answer a specific inbound correlation id. Kept as a narrow
// interface here so engine never has to import transport.
type Replier interface {
	Reply(correlation uint64, kind protocol.Kind, body []byte) error
}

// Handler returns a protocol-message handler bound to one peer connection,
// suitable for passing as a transport.ReceiveHandler. It is a dispatch
// table with one case per inbound request Kind: decode body, call the
// matching Engine method, encode and Reply.
//
// Concurrent requests from the same peer arrive on the same transport and
// so are already serialized by the transport's single read loop; Engine's
// own mutex additionally serializes across peers, so the engine runs
// requests as if on a single executor thread.
func (e *Engine) Handler(peer PeerID, r Replier) func(protocol.Message) {
	return func(msg protocol.Message) {
		switch msg.Kind {
		case protocol.CreateCommandRequest:
			e.handleCreateCommand(peer, r, msg)
		case protocol.DisposeCommand:
			e.handleDisposeCommand(msg)
		case protocol.ExecuteNonQueryRequest:
			e.handleExecuteNonQuery(r, msg)
		case protocol.ExecuteReaderRequest:
			e.handleExecuteReader(r, msg)
		case protocol.ExecuteReaderReadRequest:
			e.handleExecuteReaderRead(r, msg)
		case protocol.ExecuteReaderGetOrdinalRequest:
			e.handleGetOrdinal(r, msg)
		case protocol.ExecuteReaderGetStringRequest:
			e.handleGetString(r, msg)
		case protocol.ExecuteReaderGetInt16Request:
			e.handleGetInt16(r, msg)
		case protocol.ExecuteReaderGetInt32Request:
			e.handleGetInt32(r, msg)
		case protocol.ExecuteReaderGetInt64Request:
			e.handleGetInt64(r, msg)
		case protocol.ExecuteReaderGetFieldTypeRequest:
			e.handleGetFieldType(r, msg)
		default:
			u.Warnf("engine: peer %d sent unexpected kind %s, ignoring", peer, msg.Kind)
		}
	}
}

func (e *Engine) handleCreateCommand(peer PeerID, r Replier, msg protocol.Message) {
	sqlText, err := protocol.DecodeCreateCommandRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed CreateCommandRequest: %v", err)
		return
	}
	h, err := e.CreateCommand(peer, sqlText)
	if err != nil {
		r.Reply(msg.Correlation, protocol.CreateCommandException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.CreateCommandResponse, protocol.EncodeCreateCommandResponse(h))
}

func (e *Engine) handleDisposeCommand(msg protocol.Message) {
	h, err := protocol.DecodeHandleOnly(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed DisposeCommand: %v", err)
		return
	}
	e.DisposeCommand(h)
	// DisposeCommand has no response; it is a fire-and-forget notification.
}

func (e *Engine) handleExecuteNonQuery(r Replier, msg protocol.Message) {
	h, err := protocol.DecodeHandleOnly(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteNonQueryRequest: %v", err)
		return
	}
	changes, err := e.ExecuteNonQuery(h)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteNonQueryException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteNonQueryResponse, protocol.EncodeExecuteNonQueryResponse(changes))
}

func (e *Engine) handleExecuteReader(r Replier, msg protocol.Message) {
	h, _, err := protocol.DecodeExecuteReaderRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderRequest: %v", err)
		return
	}
	cols, err := e.ExecuteReader(h)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeExecuteReaderColumns(cols))
}

func (e *Engine) handleExecuteReaderRead(r Replier, msg protocol.Message) {
	h, err := protocol.DecodeHandleOnly(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderReadRequest: %v", err)
		return
	}
	hasRow, err := e.ExecuteReaderRead(h)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeExecuteReaderHasRow(hasRow))
}

func (e *Engine) handleGetOrdinal(r Replier, msg protocol.Message) {
	h, name, err := protocol.DecodeExecuteReaderGetOrdinalRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetOrdinalRequest: %v", err)
		return
	}
	ord, err := e.ExecuteReaderGetOrdinal(h, name)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeInt32Value(ord))
}

func (e *Engine) handleGetString(r Replier, msg protocol.Message) {
	h, ord, err := protocol.DecodeExecuteReaderGetRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetStringRequest: %v", err)
		return
	}
	v, err := e.GetString(h, ord)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeStringValue(v))
}

func (e *Engine) handleGetInt16(r Replier, msg protocol.Message) {
	h, ord, err := protocol.DecodeExecuteReaderGetRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetInt16Request: %v", err)
		return
	}
	v, err := e.GetInt16(h, ord)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeInt16Value(v))
}

func (e *Engine) handleGetInt32(r Replier, msg protocol.Message) {
	h, ord, err := protocol.DecodeExecuteReaderGetRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetInt32Request: %v", err)
		return
	}
	v, err := e.GetInt32(h, ord)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeInt32Value(v))
}

func (e *Engine) handleGetInt64(r Replier, msg protocol.Message) {
	h, ord, err := protocol.DecodeExecuteReaderGetRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetInt64Request: %v", err)
		return
	}
	v, err := e.GetInt64(h, ord)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeInt64Value(v))
}

func (e *Engine) handleGetFieldType(r Replier, msg protocol.Message) {
	h, ord, err := protocol.DecodeExecuteReaderGetRequest(msg.Body)
	if err != nil {
		u.Errorf("engine: malformed ExecuteReaderGetFieldTypeRequest: %v", err)
		return
	}
	v, err := e.GetFieldType(h, ord)
	if err != nil {
		r.Reply(msg.Correlation, protocol.ExecuteReaderException, protocol.EncodeExceptionMessage(err.Error()))
		return
	}
	r.Reply(msg.Correlation, protocol.ExecuteReaderResponse, protocol.EncodeFieldTypeValue(v))
}
