package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataux/sqliterelay/engine"
	"github.com/dataux/sqliterelay/transport"
	"github.com/dataux/sqliterelay/worker"
)

func TestClassifyNilIsNil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestClassifyEngineInvalidOperation(t *testing.T) {
	err := classify(engine.ErrInvalidOperation)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInvalidOperation, cerr.Kind)
}

func TestClassifyTransportDisconnected(t *testing.T) {
	err := classify(transport.ErrDisconnected)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindDisconnected, cerr.Kind)
}

func TestClassifyTransportTimeout(t *testing.T) {
	err := classify(transport.ErrTimeout)
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindTimeout, cerr.Kind)
}

func TestClassifyServerError(t *testing.T) {
	err := classify(&worker.ServerError{Message: "no such table: foo"})
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindServerException, cerr.Kind)
	assert.Equal(t, "no such table: foo", cerr.Message)
}

func TestClassifyUnknownErrorBecomesServerException(t *testing.T) {
	err := classify(errors.New("mystery"))
	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindServerException, cerr.Kind)
}

func TestClassifyIsIdempotentOnAlreadyClassified(t *testing.T) {
	first := classify(transport.ErrTimeout)
	second := classify(first)
	assert.Same(t, first, second)
}
