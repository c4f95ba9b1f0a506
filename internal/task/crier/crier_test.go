package crier

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

var fixed = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return fixed }

func TestCrierExecute(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "placeholder", message: TownMessage, want: "It is 2026-10-19 08:30:00 and all is well\n"},
		{name: "no placeholder", message: "hello", want: "hello\n"},
		{name: "percent kept", message: "100% at %s", want: "100% at 2026-10-19 08:30:00\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			c := New("c", tt.message, time.Second, WithWriter(&buf, nil), WithClock(clock))
			if err := c.Execute(context.Background()); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestBrokenFails(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	b := NewBroken("b", time.Minute, DefaultSpins, WithWriter(&buf, nil), WithClock(clock))
	err := b.Execute(context.Background())
	if err == nil || err.Error() != "it is 2026-10-19 08:30:00 and I broke" {
		t.Fatalf("err = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestBrokenExitsOnCancel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	b := NewBroken("b", time.Minute, DefaultSpins, WithWriter(&buf, nil), WithClock(clock))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Execute(ctx); err != nil {
		t.Fatalf("Execute after cancel: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "safely exited ") {
		t.Fatalf("got %q", buf.String())
	}
}
