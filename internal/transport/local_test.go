// ABOUTME: Tests for the local transport driver and the registry lookup

package transport

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLocalDriverCapturesStdoutAndExitCode(t *testing.T) {
	d := NewLocalDriver()

	res, err := d.Run(context.Background(), "", "/bin/echo", []string{"hello"}, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "hello" {
		t.Errorf("expected stdout %q, got %q", "hello", res.Stdout)
	}
}

func TestLocalDriverNonZeroExitCode(t *testing.T) {
	d := NewLocalDriver()

	res, err := d.Run(context.Background(), "", "/bin/false", nil, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %d", res.ExitCode)
	}
}

func TestLocalDriverTimeout(t *testing.T) {
	d := NewLocalDriver()

	res, err := d.Run(context.Background(), "", "/bin/sleep", []string{"5"}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.TimedOut {
		t.Errorf("expected TimedOut=true")
	}
}

func TestRegistryGetUnregisteredExecType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nonexistent"); err == nil {
		t.Fatalf("expected an error for an unregistered exec_type")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	driver := NewLocalDriver()
	r.Register("local", driver)

	got, err := r.Get("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != driver {
		t.Errorf("expected the registered driver back")
	}
}
