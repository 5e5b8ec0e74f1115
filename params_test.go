package tmr

import (
	"testing"
	"time"
)

func TestParamProbeCachesPresence(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if !rd.confirmed.has(ParamCommandTimeout) {
		t.Fatal("ParamCommandTimeout should be pre-confirmed by seedPresentParams")
	}
	v, err := rd.Param(ParamCommandTimeout, time.Second)
	if err != nil {
		t.Fatalf("Param: %v", err)
	}
	if _, ok := v.(time.Duration); !ok {
		t.Fatalf("Param(ParamCommandTimeout) = %T, want time.Duration", v)
	}
}

func TestParamPowerMinMaxReadThreeFieldLimitsReply(t *testing.T) {
	rd, sim := newConnectedSim(t, nil)
	sim.readPower = 2000
	sim.readPowerMin = 500
	sim.readPowerMax = 3000

	min, err := rd.Param(ParamPowerMin, time.Second)
	if err != nil {
		t.Fatalf("Param(ParamPowerMin): %v", err)
	}
	if min != int16(500) {
		t.Fatalf("ParamPowerMin = %v, want 500", min)
	}

	max, err := rd.Param(ParamPowerMax, time.Second)
	if err != nil {
		t.Fatalf("Param(ParamPowerMax): %v", err)
	}
	if max != int16(3000) {
		t.Fatalf("ParamPowerMax = %v, want 3000", max)
	}
}

func TestSetParamRejectsReadOnlyKeys(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if err := rd.SetParam(ParamModel, [4]byte{}, time.Second); err != ErrReadOnly {
		t.Fatalf("SetParam(ParamModel) = %v, want ErrReadOnly", err)
	}
}

func TestSetParamWriteModeIsHostOnly(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if err := rd.SetParam(ParamWriteMode, WriteModeBlockOnly, time.Second); err != nil {
		t.Fatalf("SetParam(ParamWriteMode): %v", err)
	}
	v, err := rd.Param(ParamWriteMode, time.Second)
	if err != nil {
		t.Fatalf("Param(ParamWriteMode): %v", err)
	}
	if v.(WriteMode) != WriteModeBlockOnly {
		t.Fatalf("WriteMode = %v, want WriteModeBlockOnly", v)
	}
}

func TestSetParamAccessPasswordIsHostOnly(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if err := rd.SetParam(ParamAccessPassword, uint32(0xcafebabe), time.Second); err != nil {
		t.Fatalf("SetParam(ParamAccessPassword): %v", err)
	}
	if rd.cache.accessPassword != 0xcafebabe {
		t.Fatalf("cache.accessPassword = %#x, want 0xcafebabe", rd.cache.accessPassword)
	}
}

func TestSetParamRejectsWrongType(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if err := rd.SetParam(ParamAccessPassword, "not a uint32", time.Second); err != ErrInvalid {
		t.Fatalf("SetParam(wrong type) = %v, want ErrInvalid", err)
	}
}

func TestGen2LinkFrequencyByteRejectsUnknownRate(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	if err := rd.SetParam(ParamGen2LinkFrequency, uint32(12345), time.Second); err != ErrInvalid {
		t.Fatalf("SetParam(bad link frequency) = %v, want ErrInvalid", err)
	}
}
