package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"
)

var (
	// ErrStreamBroken means the zlib-stream context failed; the connection
	// must be dropped.
	ErrStreamBroken = errors.New("zlib stream broken")

	// ErrUnexpectedBinary is a binary frame on an uncompressed connection.
	ErrUnexpectedBinary = errors.New("unexpected binary frame")
)

// zlibSuffix terminates every complete message in zlib-stream mode.
var zlibSuffix = []byte{0x00, 0x00, 0xff, 0xff}

// streamWait bounds how long a flushed frame may take to yield a message.
const streamWait = 10 * time.Second

// Inflater turns received frames into JSON payloads.
type Inflater struct {
	mode Compression

	// stream mode
	once    sync.Once
	pending bytes.Buffer
	pw      *io.PipeWriter
	out     chan json.RawMessage
	errc    chan error
}

// NewInflater creates an inflater for one connection.
func NewInflater(mode Compression) *Inflater {
	return &Inflater{mode: mode}
}

// Decode consumes one frame. complete is false while a zlib-stream message
// is still being assembled. Not safe for concurrent use.
func (f *Inflater) Decode(frame []byte, binary bool) (data []byte, complete bool, err error) {
	if !binary {
		return frame, true, nil
	}
	switch f.mode {
	case CompressionPayload:
		data, err = inflateMessage(frame)
		return data, err == nil, err
	case CompressionStream:
		return f.decodeStream(frame)
	}
	return nil, false, ErrUnexpectedBinary
}

func inflateMessage(frame []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return data, nil
}

func (f *Inflater) decodeStream(frame []byte) ([]byte, bool, error) {
	f.once.Do(f.startStream)

	f.pending.Write(frame)
	if !bytes.HasSuffix(f.pending.Bytes(), zlibSuffix) {
		return nil, false, nil
	}

	if _, err := f.pw.Write(f.pending.Bytes()); err != nil {
		f.pending.Reset()
		return nil, false, fmt.Errorf("%w: %v", ErrStreamBroken, err)
	}
	f.pending.Reset()

	timer := time.NewTimer(streamWait)
	defer timer.Stop()

	select {
	case msg := <-f.out:
		return msg, true, nil
	case err := <-f.errc:
		return nil, false, fmt.Errorf("%w: %v", ErrStreamBroken, err)
	case <-timer.C:
		return nil, false, fmt.Errorf("%w: flushed frame produced no message", ErrStreamBroken)
	}
}

// startStream runs the decompressor for the connection's lifetime. It keeps
// one zlib context and reads one JSON value per flushed message.
func (f *Inflater) startStream() {
	pr, pw := io.Pipe()
	f.pw = pw
	f.out = make(chan json.RawMessage, 16)
	f.errc = make(chan error, 1)

	go func() {
		zr, err := zlib.NewReader(pr)
		if err != nil {
			pr.CloseWithError(err)
			f.errc <- err
			return
		}
		dec := json.NewDecoder(zr)
		for {
			var msg json.RawMessage
			if err := dec.Decode(&msg); err != nil {
				pr.CloseWithError(err)
				f.errc <- err
				return
			}
			f.out <- msg
		}
	}()
}

// Close releases the stream context. Safe to call more than once.
func (f *Inflater) Close() {
	if f.pw != nil {
		f.pw.Close()
	}
}
