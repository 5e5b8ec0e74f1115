package tmr

import "time"

// maxAntennaPorts is the hardware-bounded capacity of the antenna map,
// per spec.md §3.
const maxAntennaPorts = 16

// AntennaMapEntry is one (logical antenna, tx port, rx port) triple.
type AntennaMapEntry struct {
	Antenna uint8
	TxPort  uint8
	RxPort  uint8
}

// portDetect is one row of the module's antenna-detect reply: a port
// number and whether a load was physically sensed on it.
type portDetect struct {
	port     uint8
	detected bool
}

// detectAntennaPorts issues the antenna-detect command and returns the
// detected ports in module order.
func (r *Reader) detectAntennaPorts(timeout time.Duration) ([]portDetect, error) {
	// Option byte 1 requests per-port detected/not-detected status in
	// addition to the port list.
	payload, err := r.command(opGetAntennaPort, []byte{1}, timeout)
	if err != nil {
		return nil, err
	}
	var ports []portDetect
	for i := 0; i+1 < len(payload) && len(ports) < maxAntennaPorts; i += 2 {
		ports = append(ports, portDetect{
			port:     payload[i],
			detected: payload[i+1] != 0,
		})
	}
	return ports, nil
}

// initTxRxMap probes antenna ports, builds the identity Tx/Rx map (port
// N acts as both tx and rx for antenna N), records the port mask, and
// if tagOpParams.antenna is still unset, defaults it to the first
// physically detected port. Grounded on initTxRxMapFromPorts in
// serial_reader.c.
func (r *Reader) initTxRxMap(timeout time.Duration) error {
	ports, err := r.detectAntennaPorts(timeout)
	if err != nil {
		return err
	}
	r.portMask = 0
	r.txRxMap = r.txRxMap[:0]
	for _, p := range ports {
		r.portMask |= 1 << (p.port - 1)
		r.txRxMap = append(r.txRxMap, AntennaMapEntry{
			Antenna: p.port,
			TxPort:  p.port,
			RxPort:  p.port,
		})
		if r.tagOpParams.Antenna == 0 && p.detected {
			r.tagOpParams.Antenna = p.port
		}
	}
	return nil
}

// hasPort reports whether port is a set bit in the reader's port mask.
func (r *Reader) hasPort(port uint8) bool {
	if port == 0 || port > maxAntennaPorts {
		return false
	}
	return r.portMask&(1<<(port-1)) != 0
}

// antennaEntry looks up the Tx/Rx map entry for a logical antenna id.
func (r *Reader) antennaEntry(antenna uint8) (AntennaMapEntry, bool) {
	for _, e := range r.txRxMap {
		if e.Antenna == antenna {
			return e, true
		}
	}
	return AntennaMapEntry{}, false
}

// logicalAntenna maps a (tx,rx) hardware port pair, as reported inside a
// tag-read record, back to the logical antenna id configured in the
// Tx/Rx map. It returns 0 if no entry matches.
func (r *Reader) logicalAntenna(tx, rx uint8) uint8 {
	for _, e := range r.txRxMap {
		if e.TxPort == tx && e.RxPort == rx {
			return e.Antenna
		}
	}
	return 0
}

// SetTxRxMap replaces the Tx/Rx map, validating that every entry's tx
// and rx port is a set bit in the port mask (ErrNoAntenna otherwise) and
// that the map doesn't exceed maxAntennaPorts.
func (r *Reader) SetTxRxMap(entries []AntennaMapEntry) error {
	if len(entries) > maxAntennaPorts {
		return ErrTooBig
	}
	for _, e := range entries {
		if !r.hasPort(e.TxPort) || !r.hasPort(e.RxPort) {
			return ErrNoAntenna
		}
	}
	r.txRxMap = append([]AntennaMapEntry(nil), entries...)
	return nil
}

// TxRxMap returns a copy of the current Tx/Rx map.
func (r *Reader) TxRxMap() []AntennaMapEntry {
	return append([]AntennaMapEntry(nil), r.txRxMap...)
}

// SetAntennaPortSwitchGpos writes the GPIO-control byte that selects
// which GPIO pins drive antenna-port switching, then rebuilds the
// Tx/Rx map since the set of usable ports can change as a result.
func (r *Reader) SetAntennaPortSwitchGpos(gpoMask uint8, timeout time.Duration) error {
	_, err := r.command(opSetReaderConfig, []byte{readerConfigAntennaSwitchGPO, gpoMask}, timeout)
	if err != nil {
		return err
	}
	return r.initTxRxMap(timeout)
}
