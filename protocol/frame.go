package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen bounds a single frame's payload so a corrupt or hostile peer
// cannot force an unbounded allocation.
const MaxFrameLen = 64 << 20 // 64MiB

// WriteFrame writes one length-prefixed frame: len:u32 BE | payload.
// A zero-length payload is a valid keep-alive frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return fmt.Errorf("protocol: frame of %d bytes exceeds max %d", len(payload), MaxFrameLen)
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// WriteKeepAlive writes a zero-length frame, the protocol's keep-alive.
func WriteKeepAlive(w io.Writer) error {
	return WriteFrame(w, nil)
}

// ReadFrame reads one length-prefixed frame from r. A frame with len==0 is
// a keep-alive: ReadFrame returns a nil payload and no error, and the
// caller is expected to loop and read again.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, nil
	}
	if n > MaxFrameLen {
		return nil, fmt.Errorf("protocol: frame of %d bytes exceeds max %d", n, MaxFrameLen)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// ReadNonKeepAliveFrame reads frames until it finds one that is not a
// keep-alive, discarding keep-alives silently along the way.
func ReadNonKeepAliveFrame(r io.Reader) ([]byte, error) {
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			return payload, nil
		}
	}
}
