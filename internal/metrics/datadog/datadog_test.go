package datadog

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"

	"himalaya/internal/metrics"
)

func TestNewBackendRequiresAddr(t *testing.T) {
	if b, err := NewBackend(Config{}); err == nil || b != nil {
		t.Fatalf("NewBackend(empty) = %v, %v; want nil, error", b, err)
	}
}

func TestLabelsToTags(t *testing.T) {
	got := labelsToTags(metrics.Labels{"step": "join", "job": "himalaya", "status": "success"})
	want := []string{"job:himalaya", "status:success", "step:join"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if labelsToTags(nil) != nil {
		t.Fatal("nil labels should give nil tags")
	}
}

func TestNilClientIsSafe(t *testing.T) {
	b := &Backend{}
	b.IncCounter(metrics.RowsTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// TestSendsToAgent points the backend at a UDP socket standing in for the
// agent and checks that a flushed counter arrives with its tags.
func TestSendsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp listen: %v", err)
	}
	defer conn.Close()

	b, err := NewBackend(Config{Addr: conn.LocalAddr().String(), Namespace: "test."})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	defer b.Close()

	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"table": "top"})
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	buf := make([]byte, 64*1024)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		for _, line := range strings.Split(string(buf[:n]), "\n") {
			if strings.HasPrefix(line, "test."+metrics.RowsTotal+":5|c") {
				if !strings.Contains(line, "table:top") {
					t.Fatalf("missing tag in %q", line)
				}
				return
			}
		}
	}
	t.Fatal("counter never reached the agent")
}
