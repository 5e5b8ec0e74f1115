package tmr

import (
	"fmt"
	"time"
)

// wakeupDuration is how long the 0xFF preamble stream must span at the
// current baud rate to guarantee the module's receiver is awake before
// the real frame arrives.
const wakeupDuration = 100 * time.Millisecond

// wakeupPreamble returns a run of 0xFF bytes sized to take roughly
// wakeupDuration to transmit at baud bits/second, 8N1 framing (10 bits
// per byte on the wire).
func wakeupPreamble(baud uint32) []byte {
	if baud == 0 {
		baud = 9600
	}
	bytesPerSecond := float64(baud) / 10
	n := int(bytesPerSecond * wakeupDuration.Seconds())
	if n < 1 {
		n = 1
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = 0xff
	}
	return buf
}

// command sends one framed request and returns the decoded response
// payload, or the statusError for a non-zero status word. Only one
// command may be in flight at a time per Reader (see the package
// concurrency notes).
func (r *Reader) command(opcode byte, payload []byte, timeout time.Duration) ([]byte, error) {
	if r.powerMode >= PowerModeMedSave {
		if err := r.transport.SendBytes(wakeupPreamble(r.effectiveBaud()), timeout); err != nil {
			return nil, fmt.Errorf("tmr: wakeup preamble: %w", err)
		}
	}
	req, err := encodeRequest(opcode, payload)
	if err != nil {
		return nil, err
	}
	if err := r.transport.SendBytes(req, timeout); err != nil {
		return nil, err
	}
	resp, err := r.receive(opcode, timeout+transportTimeout)
	if err != nil {
		return nil, err
	}
	if serr := statusError(resp.status); serr != nil {
		return resp.payload, serr
	}
	return resp.payload, nil
}

// effectiveBaud is the configured user baud rate (9600 if unset), used
// only to size the wakeup preamble. After Connect the transport runs at
// this rate; during Connect's baud scan it may run at another.
func (r *Reader) effectiveBaud() uint32 {
	if r.userBaud != 0 {
		return r.userBaud
	}
	return 9600
}

// receive implements spec.md §4.1's SOF-resync receive algorithm: pull
// 7 bytes, resync on a non-SOF lead byte by scanning bytes 1..5, then
// read the remaining len+4 bytes to complete the frame before decoding.
func (r *Reader) receive(requestOpcode byte, timeout time.Duration) (decodedResponse, error) {
	_, head, err := r.transport.ReceiveBytes(7, timeout)
	if err != nil {
		return decodedResponse{}, err
	}
	sohPos := -1
	if head[0] == sof {
		sohPos = 0
	} else {
		for i := 1; i <= 5 && i < len(head); i++ {
			if head[i] == sof {
				sohPos = i
				break
			}
		}
		if sohPos < 0 {
			return decodedResponse{}, ErrTimeout
		}
	}
	buf := append([]byte(nil), head[sohPos:]...)
	n := int(buf[1])
	// Total frame length counting from the aligned SOF is 7+n bytes;
	// buf already holds 7-sohPos of them, so sohPos+n remain.
	need := sohPos + n
	if need > 0 {
		_, tail, err := r.transport.ReceiveBytes(need, timeout)
		if err != nil {
			return decodedResponse{}, err
		}
		buf = append(buf, tail...)
	}
	return decodeResponse(buf, requestOpcode, r.useStreaming)
}
