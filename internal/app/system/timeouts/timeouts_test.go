package timeouts_test

import (
	"context"
	"testing"
	"time"

	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
)

func TestDefaults(t *testing.T) {
	timeouts.Reset()

	if timeouts.Ping() != timeouts.DefaultPing {
		t.Errorf("Ping = %v, want %v", timeouts.Ping(), timeouts.DefaultPing)
	}
	if timeouts.Short() != timeouts.DefaultShort {
		t.Errorf("Short = %v, want %v", timeouts.Short(), timeouts.DefaultShort)
	}
	if timeouts.Medium() != timeouts.DefaultMedium {
		t.Errorf("Medium = %v, want %v", timeouts.Medium(), timeouts.DefaultMedium)
	}
	if timeouts.Long() != timeouts.DefaultLong {
		t.Errorf("Long = %v, want %v", timeouts.Long(), timeouts.DefaultLong)
	}
}

func TestConfigure_ZeroFieldsKeepCurrent(t *testing.T) {
	timeouts.Reset()
	t.Cleanup(timeouts.Reset)

	timeouts.Configure(timeouts.Config{Short: 8 * time.Second})

	if timeouts.Short() != 8*time.Second {
		t.Errorf("Short = %v, want 8s", timeouts.Short())
	}
	if timeouts.Medium() != timeouts.DefaultMedium {
		t.Errorf("Medium = %v, want default untouched", timeouts.Medium())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	timeouts.Reset()
	t.Cleanup(timeouts.Reset)

	t.Setenv("TIMEOUT_PING", "750ms")
	t.Setenv("TIMEOUT_LONG", "not-a-duration")

	if applied := timeouts.ConfigureFromEnv(); applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if timeouts.Ping() != 750*time.Millisecond {
		t.Errorf("Ping = %v, want 750ms", timeouts.Ping())
	}
	if timeouts.Long() != timeouts.DefaultLong {
		t.Errorf("Long = %v, want default after bad value", timeouts.Long())
	}
}

func TestCurrent_Snapshot(t *testing.T) {
	timeouts.Reset()
	t.Cleanup(timeouts.Reset)

	timeouts.Configure(timeouts.Config{Medium: 15 * time.Second})

	got := timeouts.Current()
	if got.Medium != 15*time.Second || got.Short != timeouts.DefaultShort {
		t.Errorf("Current = %+v", got)
	}
}

func TestWithTimeout_CancelWithoutDeadline(t *testing.T) {
	ctx, cancel := timeouts.WithTimeout(context.Background(), time.Minute, nil, "noop")
	cancel()

	if ctx.Err() != context.Canceled {
		t.Errorf("ctx.Err = %v, want Canceled", ctx.Err())
	}
}

func TestWithTimeout_DeadlineExceeded(t *testing.T) {
	ctx, cancel := timeouts.WithTimeout(context.Background(), time.Millisecond, nil, "slow op")
	defer cancel()

	<-ctx.Done()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err = %v, want DeadlineExceeded", ctx.Err())
	}
}
