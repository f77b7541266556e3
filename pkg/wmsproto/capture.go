// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured event with the time the host received it
type Record struct {
	Time  int64 `cbor:"1,keyasint"` // Unix nanoseconds
	Event Event `cbor:"2,keyasint"`
}

// Timestamp returns the record time
func (r Record) Timestamp() time.Time {
	return time.Unix(0, r.Time)
}

// CaptureWriter writes events as a CBOR sequence
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a capture writer on w
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Write appends one event to the capture
func (c *CaptureWriter) Write(t time.Time, e Event) error {
	if err := c.enc.Encode(Record{Time: t.UnixNano(), Event: e}); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// CaptureReader reads a CBOR sequence written by CaptureWriter
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a capture reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture
func (c *CaptureReader) Next() (Record, error) {
	var rec Record
	if err := c.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	if rec.Event.Kind < EventPin || rec.Event.Kind > EventWarning {
		return Record{}, fmt.Errorf("invalid event kind %d in capture", rec.Event.Kind)
	}
	return rec, nil
}
