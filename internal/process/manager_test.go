package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{Name: "comproxy", Binary: "/usr/bin/comproxy"})

	if m.config.RestartDelay != defaultRestartDelay {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, defaultRestartDelay)
	}
	if m.config.MaxRestartDelay != defaultMaxRestartDelay {
		t.Errorf("MaxRestartDelay = %v, want %v", m.config.MaxRestartDelay, defaultMaxRestartDelay)
	}
	if m.config.GracefulTimeout != defaultGracefulTimeout {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, defaultGracefulTimeout)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if m.PID() != 0 {
		t.Errorf("PID() = %d, want 0", m.PID())
	}
}

func TestManager_Backoff(t *testing.T) {
	m := NewManager(Config{
		Name:            "test",
		Binary:          "/bin/true",
		RestartDelay:    time.Second,
		MaxRestartDelay: 30 * time.Second,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{9, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := m.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestManager_StopWhenNotRunning(t *testing.T) {
	m := NewManager(Config{Name: "idle", Binary: "/bin/true"})
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() on idle manager = %v, want nil", err)
	}
}

func TestManager_StartAndStop(t *testing.T) {
	var exitErr error
	exited := make(chan struct{})
	m := NewManager(Config{
		Name:            "test-sleep",
		Binary:          "/bin/sleep",
		Args:            []string{"60"},
		GracefulTimeout: 2 * time.Second,
		OnExit: func(err error) {
			exitErr = err
			close(exited)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !m.IsRunning() {
		t.Error("IsRunning() = false after Start()")
	}
	if m.PID() == 0 {
		t.Error("PID() = 0 after Start()")
	}
	if err := m.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	<-exited
	if exitErr != nil {
		t.Errorf("OnExit error = %v, want nil after Stop", exitErr)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if got := m.Stats().Starts; got != 1 {
		t.Errorf("Stats().Starts = %d, want 1", got)
	}
}

func TestManager_UnexpectedExit(t *testing.T) {
	m := NewManager(Config{Name: "false", Binary: "/bin/false"})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
	if m.Stats().LastError == "" {
		t.Error("Stats().LastError is empty after failed exit")
	}
}

func TestManager_RestartOnFailure(t *testing.T) {
	m := NewManager(Config{
		Name:               "false",
		Binary:             "/bin/false",
		RestartOnFailure:   true,
		RestartDelay:       time.Millisecond,
		MaxRestartAttempts: 2,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not give up")
	}

	stats := m.Stats()
	if stats.Starts != 3 {
		t.Errorf("Starts = %d, want 3", stats.Starts)
	}
}

func TestManager_StartWithInvalidBinary(t *testing.T) {
	m := NewManager(Config{Name: "bad-binary", Binary: "/nonexistent/binary"})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() with invalid binary expected error, got nil")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}
