package transfer

import (
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateTransferring, "transferring"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{State(999), "unknown"},
	}

	for _, test := range tests {
		if got := test.state.String(); got != test.expected {
			t.Errorf("State(%d).String() = %q, want %q", test.state, got, test.expected)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateIdle, false},
		{StateConnecting, false},
		{StateConnected, false},
		{StateTransferring, false},
		{StateCompleted, true},
		{StateFailed, true},
	}

	for _, test := range tests {
		if got := test.state.IsTerminal(); got != test.expected {
			t.Errorf("State(%s).IsTerminal() = %v, want %v", test.state, got, test.expected)
		}
	}
}

func TestState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     State
		to       State
		expected bool
	}{
		// From idle
		{StateIdle, StateConnecting, true},
		{StateIdle, StateFailed, true},
		{StateIdle, StateConnected, false},
		{StateIdle, StateTransferring, false},

		// From connecting
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateFailed, true},
		{StateConnecting, StateTransferring, false},
		{StateConnecting, StateIdle, false},

		// From connected
		{StateConnected, StateTransferring, true},
		{StateConnected, StateFailed, true},
		{StateConnected, StateCompleted, false},

		// From transferring
		{StateTransferring, StateTransferring, true},
		{StateTransferring, StateCompleted, true},
		{StateTransferring, StateFailed, true},
		{StateTransferring, StateConnected, false},

		// Terminal states never move
		{StateCompleted, StateTransferring, false},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateConnecting, false},
		{StateFailed, StateIdle, false},
	}

	for _, test := range tests {
		if got := test.from.CanTransitionTo(test.to); got != test.expected {
			t.Errorf("State(%s).CanTransitionTo(%s) = %v, want %v",
				test.from, test.to, got, test.expected)
		}
	}
}

func TestStatus_RemainingBytes(t *testing.T) {
	tests := []struct {
		name     string
		received int64
		size     int64
		expected int64
	}{
		{"no progress", 0, 1000, 1000},
		{"half complete", 500, 1000, 500},
		{"fully complete", 1000, 1000, 0},
		{"over complete", 1200, 1000, 0}, // Should not go negative
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			status := Status{BytesReceived: test.received, File: Metadata{Size: test.size}}
			if got := status.RemainingBytes(); got != test.expected {
				t.Errorf("RemainingBytes() = %d, want %d", got, test.expected)
			}
		})
	}
}

func TestStatus_SetProgress(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	status := Status{File: Metadata{Size: 1000}, StartTime: start}

	status.setProgress(50, start.Add(5*time.Second))

	if status.BytesReceived != 500 {
		t.Errorf("BytesReceived = %d, want 500", status.BytesReceived)
	}
	if status.TransferRate != 100 {
		t.Errorf("TransferRate = %f, want 100", status.TransferRate)
	}
	if status.ETA != 5*time.Second {
		t.Errorf("ETA = %s, want 5s", status.ETA)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if got := DefaultConfig().ConnectTimeout; got != 30*time.Second {
		t.Errorf("default ConnectTimeout = %s, want 30s", got)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Error("zero connect timeout should be rejected")
	}
}
