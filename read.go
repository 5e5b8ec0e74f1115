package tmr

import (
	"errors"
	"time"

	"tmreader.dev/tagop"
)

// Search-flag bits for opReadTagIDMultiple, grounded on
// TMR_SR_SEARCH_FLAG_* in tmr_serial_reader.h.
const (
	searchFlagConfiguredAntenna = 0x0001
	searchFlagEmbeddedCommand   = 0x0040
)

// maxSearchTimeout is the largest per-iteration search timeout the wire
// TIMEOUT field (16 bits, milliseconds) can carry. A Read whose overall
// timeout exceeds this loops multiple ReadTagMultiple commands, per
// serial_reader.c's read-plan execution loop.
const maxSearchTimeout = 65535 * time.Millisecond

// streamState is the Reader's buffered/streaming read cursor: records
// already pulled from the module's tag buffer but not yet delivered to
// the caller via GetNextTag, plus the host clock captured when the
// search that produced them was issued (parseTagRecord folds each
// record's DSP microsecond delta onto this).
type streamState struct {
	active      bool
	startMicros uint64
	pending     []TagReadData
}

// nowMicros is the host clock, in microseconds since the Unix epoch,
// used as the base a tag record's timestamp delta is folded onto.
func nowMicros() uint64 { return uint64(time.Now().UnixMicro()) }

// Read executes plan synchronously and returns every tag read before
// timeout elapses (or ErrNoTagsFound is swallowed into an empty slice),
// per spec.md §4.5's execution dispatch: the multi-protocol fast path,
// weighted-multi recursion, or a single simple-plan search.
func (r *Reader) Read(plan ReadPlan, timeout time.Duration) ([]TagReadData, error) {
	if err := r.validatePlan(plan); err != nil {
		return nil, err
	}
	switch p := plan.(type) {
	case SimplePlan:
		out, err := r.readSimple(p, timeout)
		return dedupTags(out, p.Dedup), err
	case MultiPlan:
		out, err := r.readMulti(p, timeout)
		return dedupTags(out, p.Dedup), err
	default:
		return nil, ErrInvalid
	}
}

// dedupTags collapses repeat reads of the same tag per mode, keeping the
// first occurrence's record. DedupNone returns tags unchanged.
func dedupTags(tags []TagReadData, mode DedupMode) []TagReadData {
	if mode == DedupNone || len(tags) == 0 {
		return tags
	}
	seen := make(map[string]bool, len(tags))
	out := make([]TagReadData, 0, len(tags))
	for _, t := range tags {
		key := string(t.EPC)
		if mode == DedupByEPCAntenna {
			key += string([]byte{t.Antenna})
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

func (r *Reader) readMulti(p MultiPlan, timeout time.Duration) ([]TagReadData, error) {
	if isMultiProtocolSearchShape(p) {
		if antennas, agree := fastPathAntennas(p); agree {
			return r.readMultiProtocolFastPath(p, antennas, timeout)
		}
	}
	var out []TagReadData
	for _, child := range p.Plans {
		w := childWeight(child)
		if w <= 0 {
			continue
		}
		sub := timeout * time.Duration(w) / time.Duration(p.TotalWeight)
		tags, err := r.Read(child, sub)
		if err != nil && !errors.Is(err, ErrNoTagsFound) {
			return out, err
		}
		out = append(out, tags...)
	}
	return out, nil
}

// readMultiProtocolFastPath issues a single MultipleProtocolSearch frame
// covering every child plan's protocol, per spec.md §4.5's fast path for
// the all-simple-children, zero-weight multi-plan shape.
func (r *Reader) readMultiProtocolFastPath(p MultiPlan, antennas []uint8, timeout time.Duration) ([]TagReadData, error) {
	payload := make([]byte, 0, 16)
	payload = append(payload, byte(len(p.Plans)))
	for _, child := range p.Plans {
		sp, ok := child.(SimplePlan)
		if !ok {
			return nil, ErrInvalid
		}
		payload = append(payload, byte(sp.Protocol))
	}
	payload = append(payload, byte(len(antennas)))
	payload = append(payload, antennas...)
	payload = putBE16(payload, uint16(MetadataAll))
	payload = putBE16(payload, clampMillis(timeout))

	resp, err := r.command(opMultiProtocolSearch, payload, timeout)
	if err != nil {
		if errors.Is(err, ErrNoTagsFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.parseTagRecords(resp, nowMicros())
}

// readSimple runs one SimplePlan: switching protocol if needed, issuing
// the search, then draining every record the module buffered.
func (r *Reader) readSimple(p SimplePlan, timeout time.Duration) ([]TagReadData, error) {
	if p.Protocol != ProtocolNone && p.Protocol != r.currentProtocol {
		if err := r.SetProtocol(p.Protocol, r.commandTimeout); err != nil {
			return nil, err
		}
	}
	if err := r.search(p, timeout); err != nil {
		if errors.Is(err, ErrNoTagsFound) {
			return nil, nil
		}
		return nil, err
	}
	var out []TagReadData
	for {
		tag, err := r.GetNextTag(timeout)
		if err != nil {
			if errors.Is(err, ErrNoTags) {
				return out, nil
			}
			return out, err
		}
		out = append(out, tag)
	}
}

// search clears the module's tag buffer, then loops opReadTagIDMultiple
// until the cumulative wall-clock search time reaches timeout, each
// iteration capped at maxSearchTimeout since the wire TIMEOUT field is
// 16 bits — per the elapsed-time loop in serial_reader.c's read-plan
// execution (serial_reader.c:560-573). The buffer is cleared only once,
// so tags found by every iteration remain queued for GetNextTag/
// HasMoreTags to drain afterward.
func (r *Reader) search(p SimplePlan, timeout time.Duration) error {
	antennas := p.Antennas
	if len(antennas) == 0 {
		ports, err := r.detectAntennaPorts(timeout)
		if err != nil {
			return err
		}
		for _, pd := range ports {
			if pd.detected {
				antennas = append(antennas, pd.port)
			}
		}
	}
	if len(antennas) == 0 && r.tagOpParams.Antenna != 0 {
		antennas = []uint8{r.tagOpParams.Antenna}
	}

	if _, err := r.command(opClearTagIDBuffer, nil, timeout); err != nil {
		return err
	}
	r.stream = streamState{active: true, startMicros: nowMicros()}

	start := time.Now()
	for elapsed := time.Duration(0); elapsed < timeout; elapsed = time.Since(start) {
		iterTimeout := timeout - elapsed
		if iterTimeout > maxSearchTimeout {
			iterTimeout = maxSearchTimeout
		}
		if err := r.issueSearch(p, antennas, iterTimeout); err != nil {
			if !errors.Is(err, ErrNoTagsFound) {
				return err
			}
		}
	}
	return nil
}

// issueSearch sends one opReadTagIDMultiple request covering timeout,
// embedding p.TagOp's frame (per spec.md §4.6's embedded-op format) when
// present, or p.Filter alone otherwise.
func (r *Reader) issueSearch(p SimplePlan, antennas []uint8, timeout time.Duration) error {
	flags := uint16(searchFlagConfiguredAntenna)
	embedded := p.TagOp != nil
	if embedded {
		flags |= searchFlagEmbeddedCommand
	}

	payload := putBE16(nil, flags)
	payload = putBE16(payload, uint16(MetadataAll))
	payload = putBE16(payload, clampMillis(timeout))
	payload = append(payload, byte(len(antennas)))
	payload = append(payload, antennas...)

	usePassword := r.cache.accessPassword != 0
	switch {
	case embedded:
		body, err := tagop.Encode(p.TagOp, clampMillis(timeout), p.Filter, r.cache.accessPassword, usePassword)
		if err != nil {
			return err
		}
		if len(body) > 0xff {
			return ErrTooBig
		}
		payload = append(payload, byte(len(body)))
		payload = append(payload, body...)
	case p.Filter != nil:
		option, fbuf, err := tagop.EncodeFilter(nil, p.Filter, r.cache.accessPassword, usePassword)
		if err != nil {
			return err
		}
		payload = append(payload, option)
		payload = append(payload, fbuf...)
	}

	_, err := r.command(opReadTagIDMultiple, payload, timeout)
	return err
}

// HasMoreTags reports whether GetNextTag has a record ready, pulling
// another page from the module's tag buffer via opGetTagIDBuffer if the
// local queue is empty. It returns false, nil once the module reports
// its buffer drained (statusNoTagsFound), not an error.
func (r *Reader) HasMoreTags(timeout time.Duration) (bool, error) {
	if !r.stream.active {
		return false, nil
	}
	if len(r.stream.pending) > 0 {
		return true, nil
	}
	if err := r.fillStreamBuffer(timeout); err != nil {
		if errors.Is(err, ErrNoTagsFound) {
			r.stream.active = false
			return false, nil
		}
		return false, err
	}
	if len(r.stream.pending) == 0 {
		r.stream.active = false
		return false, nil
	}
	return true, nil
}

// GetNextTag returns the next buffered tag record, pulling a fresh page
// from the module if needed, or ErrNoTags once the stream is exhausted.
func (r *Reader) GetNextTag(timeout time.Duration) (TagReadData, error) {
	has, err := r.HasMoreTags(timeout)
	if err != nil {
		return TagReadData{}, err
	}
	if !has {
		return TagReadData{}, ErrNoTags
	}
	tag := r.stream.pending[0]
	r.stream.pending = r.stream.pending[1:]
	return tag, nil
}

func (r *Reader) fillStreamBuffer(timeout time.Duration) error {
	resp, err := r.command(opGetTagIDBuffer, putBE16(nil, uint16(MetadataAll)), timeout)
	if err != nil {
		return err
	}
	records, err := r.parseTagRecords(resp, r.stream.startMicros)
	if err != nil {
		return err
	}
	r.stream.pending = append(r.stream.pending, records...)
	return nil
}

// parseTagRecords decodes every tag record packed back-to-back in buf.
func (r *Reader) parseTagRecords(buf []byte, startMicros uint64) ([]TagReadData, error) {
	var out []TagReadData
	pos := 0
	for pos < len(buf) {
		rec, n, err := r.parseTagRecord(buf[pos:], startMicros)
		if err != nil {
			return out, err
		}
		if n <= 0 {
			break
		}
		out = append(out, rec)
		pos += n
	}
	return out, nil
}

// ExecuteTagOp runs op standalone against a single tagged selection
// (filter), outside of a ReadPlan's search — the shape TagReadData-less
// write/lock/kill callers want.
func (r *Reader) ExecuteTagOp(op tagop.Op, filter tagop.Filter, timeout time.Duration) ([]byte, error) {
	usePassword := r.cache.accessPassword != 0
	body, err := tagop.Encode(op, clampMillis(timeout), filter, r.cache.accessPassword, usePassword)
	if err != nil {
		return nil, err
	}
	return r.command(op.Opcode(), body, timeout)
}

// WriteGen2Data writes data to bank at byteAddr, a tag-memory byte
// offset, honoring the cached WriteMode: BlockOnly/WordOnly use the
// matching op outright, and BlockFallback (spec.md §4.6, testable
// property #7) retries as a word-write if the block-write attempt
// fails for any reason. byteAddr and data's byte length must both be
// word-aligned (spec.md §4.6: "Writes to Gen2 reject misaligned byte
// addresses or lengths with Invalid"), checked via
// tagop.ValidateGen2Write before anything is encoded or sent.
func (r *Reader) WriteGen2Data(bank tagop.Bank, byteAddr uint32, data []uint16, filter tagop.Filter, timeout time.Duration) error {
	if err := tagop.ValidateGen2Write(byteAddr, len(data)*2); err != nil {
		return err
	}
	wordAddr := byteAddr / 2
	mode := r.cache.writeMode
	if mode == WriteModeBlockOnly || mode == WriteModeBlockFallback {
		_, err := r.ExecuteTagOp(tagop.Gen2BlockWrite{Bank: bank, WordPointer: wordAddr, Data: data}, filter, timeout)
		if err == nil || mode == WriteModeBlockOnly {
			return err
		}
	}
	_, err := r.ExecuteTagOp(tagop.Gen2WriteData{Bank: bank, WordAddress: wordAddr, Data: data}, filter, timeout)
	return err
}

// clampMillis converts d to a uint16 millisecond count, saturating at
// 0xffff rather than wrapping, since every wire field it feeds is 16 bits.
func clampMillis(d time.Duration) uint16 {
	ms := d.Milliseconds()
	if ms > 0xffff {
		return 0xffff
	}
	if ms < 0 {
		return 0
	}
	return uint16(ms)
}
