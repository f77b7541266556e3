// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package wmsproto

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
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

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

var whitespace = []string{" ", "  ", "\r\n", "\n", "\t"}

// randomReply builds a well-formed reply token and the event it classifies to
func randomReply(rng *rand.Rand) (string, Event) {
	switch rng.Intn(6) {
	case 0:
		pin := rng.Intn(16)
		return fmt.Sprintf("-d%x", pin), PinEvent(pin, 0)
	case 1:
		pin := rng.Intn(16)
		return fmt.Sprintf("+d%X", pin), PinEvent(pin, 1)
	case 2:
		v := rng.Uint32()
		return fmt.Sprintf("=d0/%08x", v), RegisterEvent(RegisterMode, v)
	case 3:
		v := rng.Uint32()
		return fmt.Sprintf("=d4/%08x", v), RegisterEvent(RegisterInput, v)
	case 4:
		v := rng.Uint32()
		return fmt.Sprintf("=u0/%08x", v), RegisterEvent(RegisterStatus, v)
	default:
		v := rng.Uint32()
		return fmt.Sprintf("=m40023830/%08x", v), EnabledEvent(v)
	}
}

// ============================================================
// Classifier Fuzz Tests
// ============================================================

// TestFuzzClassifier_RandomBytes feeds random printable chunks to the
// classifier and verifies it yields one event per token without panicking
func TestFuzzClassifier_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	const alphabet = "?+-=/dmu0123456789abcdefABCDEF \n\txyz"
	for i := 0; i < rounds; i++ {
		length := rng.Intn(128) + 1
		chunk := make([]byte, length)
		for j := range chunk {
			chunk[j] = alphabet[rng.Intn(len(alphabet))]
		}

		events := Classify(string(chunk))
		tokens := strings.Fields(string(chunk))
		if len(events) != len(tokens) {
			t.Fatalf("Round %d: %d tokens gave %d events", i, len(tokens), len(events))
		}
		for j, ev := range events {
			if ev.IsWarning() && ev.Token != tokens[j] {
				t.Errorf("Round %d: warning token %q, expected %q", i, ev.Token, tokens[j])
			}
		}
	}
}

// TestFuzzClassifier_RandomReplies classifies chunks of well-formed replies
// and verifies event order and content
func TestFuzzClassifier_RandomReplies(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		count := rng.Intn(12) + 1
		var chunk strings.Builder
		expected := make([]Event, 0, count)
		for j := 0; j < count; j++ {
			token, ev := randomReply(rng)
			chunk.WriteString(whitespace[rng.Intn(len(whitespace))])
			chunk.WriteString(token)
			expected = append(expected, ev)
		}

		events := Classify(chunk.String())
		if len(events) != len(expected) {
			t.Fatalf("Round %d: got %d events, expected %d", i, len(events), len(expected))
		}
		for j := range events {
			if events[j] != expected[j] {
				t.Errorf("Round %d event %d: got %+v, expected %+v", i, j, events[j], expected[j])
			}
		}
	}
}

// ============================================================
// Formatter Fuzz Tests
// ============================================================

// TestFuzzFormatter_RandomEvents formats random events and checks the
// output names the event kind
func TestFuzzFormatter_RandomEvents(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		ev := Event{
			Kind:     EventKind(rng.Intn(6)),
			Pin:      rng.Intn(40) - 4,
			Level:    rng.Intn(2),
			Register: Register(rng.Intn(5)),
			Value:    rng.Uint32(),
		}
		out := FormatEvent(ev)
		if out == "" {
			t.Fatalf("Round %d: empty output for %+v", i, ev)
		}
		if ev.Kind >= EventPin && ev.Kind <= EventWarning && !strings.Contains(out, ev.Kind.String()) {
			t.Errorf("Round %d: %q does not name %s", i, out, ev.Kind)
		}
	}
}

// ============================================================
// Capture Fuzz Tests
// ============================================================

// TestFuzzCapture_RandomStreams writes random reply streams to a capture
// and reads them back in order
func TestFuzzCapture_RandomStreams(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds == 0 {
		rounds = 1
	}
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		var buf bytes.Buffer
		w := NewCaptureWriter(&buf)
		count := rng.Intn(50)
		expected := make([]Event, count)
		for j := range expected {
			_, expected[j] = randomReply(rng)
			if err := w.Write(time.Unix(0, rng.Int63()), expected[j]); err != nil {
				t.Fatalf("Round %d: write failed: %v", i, err)
			}
		}

		r := NewCaptureReader(&buf)
		for j := range expected {
			rec, err := r.Next()
			if err != nil {
				t.Fatalf("Round %d record %d: %v", i, j, err)
			}
			if rec.Event != expected[j] {
				t.Errorf("Round %d record %d: got %+v, expected %+v", i, j, rec.Event, expected[j])
			}
		}
		if _, err := r.Next(); err != io.EOF {
			t.Errorf("Round %d: expected io.EOF, got %v", i, err)
		}
	}
}
