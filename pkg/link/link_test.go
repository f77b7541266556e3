// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

type readResult struct {
	data []byte
	err  error
}

// fakeConn replays scripted reads and records writes. Once the script is
// exhausted reads block until Close.
type fakeConn struct {
	mu         sync.Mutex
	reads      []readResult
	written    bytes.Buffer
	writeCalls int
	writeLimit int   // max bytes accepted per Write, 0 = unlimited
	writeErr   error // returned by every Write when set
	zeroWrites bool  // accept nothing without error
	closed     chan struct{}
	closeCount int
	timeouts   []time.Duration
}

func newFakeConn(reads ...readResult) *fakeConn {
	return &fakeConn{reads: reads, closed: make(chan struct{})}
}

func data(s string) readResult {
	return readResult{data: []byte(s)}
}

func raw(b ...byte) readResult {
	return readResult{data: b}
}

func timeout() readResult {
	return readResult{err: os.ErrDeadlineExceeded}
}

func empty() readResult {
	return readResult{}
}

func (f *fakeConn) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.reads) > 0 {
		r := f.reads[0]
		f.reads = f.reads[1:]
		f.mu.Unlock()
		n := copy(p, r.data)
		return n, r.err
	}
	f.mu.Unlock()
	<-f.closed
	return 0, io.EOF
}

func (f *fakeConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls++
	select {
	case <-f.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.zeroWrites {
		return 0, nil
	}
	n := len(p)
	if f.writeLimit > 0 && n > f.writeLimit {
		n = f.writeLimit
	}
	f.written.Write(p[:n])
	return n, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if f.closeCount == 1 {
		close(f.closed)
	}
	return nil
}

func (f *fakeConn) SetReadTimeout(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakeConn) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

var errBoom = errors.New("boom")
