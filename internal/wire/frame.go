package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds a single frame.
const MaxFrameSize = 64 << 20

var errFrameTooLarge = errors.New("wire: frame too large")

// WriteFrame writes payload prefixed by its length as a protobuf varint.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return errFrameTooLarge
	}
	buf := protowire.AppendVarint(make([]byte, 0, len(payload)+binaryMaxVarint), uint64(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

const binaryMaxVarint = 10

// ReadFrame reads one length-prefixed frame.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var head []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(head) > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		head = append(head, b)
		if b < 0x80 {
			break
		}
		if len(head) == binaryMaxVarint {
			return nil, errors.New("wire: malformed frame length")
		}
	}
	n, consumed := protowire.ConsumeVarint(head)
	if consumed < 0 {
		return nil, fmt.Errorf("wire: frame length: %w", protowire.ParseError(consumed))
	}
	if n > MaxFrameSize {
		return nil, errFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}

// Conn exchanges JSON messages over a pair of streams. It is not safe for
// concurrent use.
type Conn struct {
	r *bufio.Reader
	w io.Writer
}

// NewConn creates a Conn reading from r and writing to w.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: bufio.NewReader(r), w: w}
}

// Send encodes msg as JSON and writes it as one frame.
func (c *Conn) Send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}
	return WriteFrame(c.w, payload)
}

// Recv reads one frame and decodes it into msg.
func (c *Conn) Recv(msg any) error {
	payload, err := ReadFrame(c.r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
