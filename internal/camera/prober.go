package camera

import (
	"bytes"
	"fmt"
	"sync"
)

// ProbeMethod records how the video stream was identified
type ProbeMethod string

const (
	// ProbeMethodSDP means the session description declared an H.264 format
	ProbeMethodSDP ProbeMethod = "sdp"
	// ProbeMethodNALScan means packet payloads showed H.264 start codes
	ProbeMethodNALScan ProbeMethod = "nal_scan"
	// ProbeMethodByteCount means no stream looked like H.264 and the
	// busiest stream was taken as a last resort
	ProbeMethodByteCount ProbeMethod = "byte_count"
)

var annexBPrefixes = [][]byte{
	{0x00, 0x00, 0x00, 0x01},
	{0x00, 0x00, 0x01},
}

// minVideoPayload filters out audio and metadata packets, which stay small
const minVideoPayload = 1000

// StreamProber identifies the video stream of a session whose description
// does not declare codecs. It watches the first packets of every stream and
// picks the one whose payloads carry H.264 start codes; if none qualify
// within the packet budget, it falls back to the stream with the most bytes.
type StreamProber struct {
	maxPackets int

	mu      sync.Mutex
	streams map[int]*probeStats
	decided bool
	choice  int
	method  ProbeMethod
	done    chan struct{}
}

type probeStats struct {
	packets int
	bytes   int64
	h264    bool
}

// NewStreamProber creates a prober that inspects up to maxPackets packets
// per stream before falling back
func NewStreamProber(maxPackets int) *StreamProber {
	if maxPackets <= 0 {
		maxPackets = 30
	}
	return &StreamProber{
		maxPackets: maxPackets,
		streams:    map[int]*probeStats{},
		choice:     -1,
		done:       make(chan struct{}),
	}
}

// Observe feeds one packet payload from the given stream into the prober.
// It returns true once a decision has been reached.
func (p *StreamProber) Observe(streamIndex int, payload []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.decided {
		return true
	}

	st, ok := p.streams[streamIndex]
	if !ok {
		st = &probeStats{}
		p.streams[streamIndex] = st
	}
	st.packets++
	st.bytes += int64(len(payload))

	// Conformant RFC 6184 packetization strips start codes, so this only
	// fires on cameras that ship raw Annex-B inside RTP. Everything else
	// runs out the budget and lands on the byte-count fallback.
	if len(payload) > minVideoPayload && hasAnnexBPrefix(payload) {
		st.h264 = true
		p.decide(streamIndex, ProbeMethodNALScan)
		return true
	}

	// Give up on scanning once every observed stream used its budget
	if st.packets >= p.maxPackets && p.allExhausted() {
		p.fallbackLocked()
		return true
	}
	return false
}

// Decision returns the chosen stream index and how it was chosen. ok is
// false while the prober is still collecting.
func (p *StreamProber) Decision() (index int, method ProbeMethod, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.choice, p.method, p.decided
}

// Done is closed once a decision has been reached
func (p *StreamProber) Done() <-chan struct{} {
	return p.done
}

// Finish forces a byte-count decision from whatever has been observed so
// far, for callers that ran out of time before the packet budget did
func (p *StreamProber) Finish() (int, ProbeMethod, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.decided {
		p.fallbackLocked()
	}
	if p.choice < 0 {
		return -1, p.method, fmt.Errorf("no packets observed on any stream")
	}
	return p.choice, p.method, nil
}

func (p *StreamProber) allExhausted() bool {
	for _, st := range p.streams {
		if st.packets < p.maxPackets {
			return false
		}
	}
	return true
}

// fallbackLocked picks the stream with the largest byte count. Video dwarfs
// audio in throughput, so this rarely guesses wrong. Callers hold p.mu.
func (p *StreamProber) fallbackLocked() {
	best := -1
	var bestBytes int64 = -1
	for idx, st := range p.streams {
		if st.bytes > bestBytes {
			best = idx
			bestBytes = st.bytes
		}
	}
	p.decide(best, ProbeMethodByteCount)
}

func (p *StreamProber) decide(index int, method ProbeMethod) {
	if p.decided {
		return
	}
	p.decided = true
	p.choice = index
	p.method = method
	close(p.done)
}

func hasAnnexBPrefix(payload []byte) bool {
	for _, prefix := range annexBPrefixes {
		if bytes.HasPrefix(payload, prefix) {
			return true
		}
	}
	return false
}
