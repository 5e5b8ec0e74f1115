package tmr

import (
	"testing"
	"time"
)

func TestNewAppliesOptions(t *testing.T) {
	sim := NewSimulator(nil)
	rd := New(sim, 9600, WithRegion(Region(1)), WithCommandTimeout(750*time.Millisecond))
	if rd.region != Region(1) {
		t.Fatalf("region = %v, want 1", rd.region)
	}
	if rd.commandTimeout != 750*time.Millisecond {
		t.Fatalf("commandTimeout = %v, want 750ms", rd.commandTimeout)
	}
	if rd.Connected() {
		t.Fatal("Connected() = true before Connect")
	}
}

func TestDestroyShutsDownUnconnectedReader(t *testing.T) {
	sim := NewSimulator(nil)
	rd := New(sim, 9600)
	if err := rd.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
}

func TestDestroyStopsBackgroundWorkerFirst(t *testing.T) {
	rd, _ := newConnectedSim(t, []SimTag{tagA()})
	if err := rd.StartReading(SimplePlan{Protocol: ProtocolGen2}, 20*time.Millisecond, 5*time.Millisecond); err != nil {
		t.Fatalf("StartReading: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := rd.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if rd.Connected() {
		t.Fatal("Connected() = true after Destroy")
	}
}

func TestVersionSupportsBitIndexing(t *testing.T) {
	v := VersionInfo{Protocols: 1 << (uint(ProtocolGen2) - 1)}
	if !v.Supports(ProtocolGen2) {
		t.Fatal("Supports(Gen2) = false, want true")
	}
	if v.Supports(ProtocolISO180006B) {
		t.Fatal("Supports(ISO180006B) = true, want false")
	}
	if v.Supports(ProtocolNone) {
		t.Fatal("Supports(ProtocolNone) should always be false")
	}
}
