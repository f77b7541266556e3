// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/wmsctl/pkg/wmsproto"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// ============================================================
// Transport Fuzz Tests
// ============================================================

// TestFuzzTransport_NegotiationSplit interleaves reply text with negotiation
// sequences, splits the stream at random points and verifies that exactly the
// reply text comes out
func TestFuzzTransport_NegotiationSplit(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	const text = "+-=/d0123456789abcdef "
	for i := 0; i < rounds; i++ {
		var stream, expected []byte
		for j := rng.Intn(64) + 1; j > 0; j-- {
			if rng.Intn(4) == 0 {
				// Payload bytes are arbitrary, including the marker itself
				stream = append(stream, wmsproto.NegotiationMarker, byte(rng.Intn(256)), byte(rng.Intn(256)))
				continue
			}
			b := text[rng.Intn(len(text))]
			stream = append(stream, b)
			expected = append(expected, b)
		}
		stream = append(stream, []byte(" END")...)
		expected = append(expected, []byte(" END")...)

		var reads []readResult
		for rest := stream; len(rest) > 0; {
			n := rng.Intn(len(rest)) + 1
			if n > readBufferSize {
				n = readBufferSize
			}
			reads = append(reads, readResult{data: append([]byte(nil), rest[:n]...)})
			rest = rest[n:]
		}

		tr := NewTransport(newFakeConn(reads...), DefaultConfig())
		var got strings.Builder
		for {
			s, err := tr.Receive()
			if err != nil {
				t.Fatalf("Round %d: receive failed: %v", i, err)
			}
			got.WriteString(s)
			if strings.HasSuffix(stripSpace(got.String()), "END") {
				break
			}
		}

		if stripSpace(got.String()) != stripSpace(string(expected)) {
			t.Errorf("Round %d: got %q, expected %q", i, got.String(), expected)
		}
	}
}

// TestFuzzTransport_PartialWrites sends random commands over connections
// accepting a random number of bytes per write
func TestFuzzTransport_PartialWrites(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		conn := newFakeConn()
		conn.writeLimit = rng.Intn(8) + 1
		tr := NewTransport(conn, DefaultConfig())

		var sent strings.Builder
		for j := rng.Intn(8) + 1; j > 0; j-- {
			cmd := wmsproto.PinSetCommand(rng.Intn(16))
			if rng.Intn(2) == 0 {
				cmd = wmsproto.CmdReadAHB1ENR
			}
			if err := tr.Send(cmd); err != nil {
				t.Fatalf("Round %d: send failed: %v", i, err)
			}
			sent.WriteString(cmd)
		}

		if conn.Written() != sent.String() {
			t.Errorf("Round %d: wrote %q, expected %q", i, conn.Written(), sent.String())
		}
	}
}
