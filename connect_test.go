package tmr

import "testing"

func newConnectedSim(t *testing.T, tags []SimTag) (*Reader, *Simulator) {
	t.Helper()
	sim := NewSimulator(tags)
	rd := New(sim, 9600)
	if err := rd.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return rd, sim
}

func TestConnectSucceedsAtFirstBaud(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if !rd.Connected() {
		t.Fatal("Connected() = false after a successful Connect")
	}
}

func TestConnectDiscoversVersionAndProtocols(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	v := rd.Version()
	if !v.Supports(ProtocolGen2) {
		t.Error("version does not report Gen2 support")
	}
	if !v.Supports(ProtocolISO180006B) {
		t.Error("version does not report ISO180006B support")
	}
	if v.Supports(ProtocolIPX64) {
		t.Error("version incorrectly reports IPX64 support")
	}
}

func TestConnectBuildsTxRxMap(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	m := rd.TxRxMap()
	if len(m) != 2 {
		t.Fatalf("TxRxMap() has %d entries, want 2", len(m))
	}
	if _, ok := rd.antennaEntry(1); !ok {
		t.Error("antenna 1 missing from Tx/Rx map")
	}
	if _, ok := rd.antennaEntry(2); !ok {
		t.Error("antenna 2 missing from Tx/Rx map")
	}
	if _, ok := rd.antennaEntry(3); ok {
		t.Error("antenna 3 unexpectedly present in Tx/Rx map")
	}
}

func TestConnectDefaultsTagOpAntennaToFirstDetected(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if rd.tagOpParams.Antenna != 1 {
		t.Fatalf("tagOpParams.Antenna = %d, want 1", rd.tagOpParams.Antenna)
	}
}

func TestSetProtocolReassertsExtendedEPC(t *testing.T) {
	rd, sim := newConnectedSim(t, nil)
	before := sim.extendedEPCWrites
	if err := rd.SetProtocol(ProtocolISO180006B, rd.commandTimeout); err != nil {
		t.Fatalf("SetProtocol: %v", err)
	}
	if rd.currentProtocol != ProtocolISO180006B {
		t.Fatalf("currentProtocol = %v, want ISO180006B", rd.currentProtocol)
	}
	if sim.extendedEPCWrites != before+1 {
		t.Fatalf("ExtendedEPC writes during SetProtocol = %d, want 1", sim.extendedEPCWrites-before)
	}
}
