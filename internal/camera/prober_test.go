package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h264Payload(size int) []byte {
	payload := make([]byte, size)
	copy(payload, []byte{0x00, 0x00, 0x00, 0x01, 0x65})
	return payload
}

func TestProberDetectsH264ByStartCode(t *testing.T) {
	p := NewStreamProber(30)

	// Small audio packets on stream 0
	decided := p.Observe(0, make([]byte, 200))
	assert.False(t, decided)

	// Large packet with an Annex-B prefix on stream 1
	decided = p.Observe(1, h264Payload(1400))
	assert.True(t, decided)

	index, method, ok := p.Decision()
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, ProbeMethodNALScan, method)
}

func TestProberThreeByteStartCode(t *testing.T) {
	p := NewStreamProber(30)

	payload := make([]byte, 1200)
	copy(payload, []byte{0x00, 0x00, 0x01, 0x67})

	assert.True(t, p.Observe(2, payload))
	index, method, _ := p.Decision()
	assert.Equal(t, 2, index)
	assert.Equal(t, ProbeMethodNALScan, method)
}

func TestProberIgnoresSmallPacketsWithPrefix(t *testing.T) {
	p := NewStreamProber(30)

	// Start code present but the packet is too small to be video
	assert.False(t, p.Observe(0, h264Payload(500)))
}

func TestProberFallsBackToByteCount(t *testing.T) {
	p := NewStreamProber(5)

	// Neither stream shows start codes; stream 1 carries far more bytes
	var decided bool
	for i := 0; i < 5; i++ {
		decided = p.Observe(0, make([]byte, 100))
		decided = p.Observe(1, make([]byte, 1400))
	}

	require.True(t, decided)
	index, method, ok := p.Decision()
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, ProbeMethodByteCount, method)
}

func TestProberFinishBeforeBudget(t *testing.T) {
	p := NewStreamProber(30)

	p.Observe(0, make([]byte, 300))
	p.Observe(1, make([]byte, 900))

	index, method, err := p.Finish()
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, ProbeMethodByteCount, method)
}

func TestProberFinishWithNoPackets(t *testing.T) {
	p := NewStreamProber(30)

	_, _, err := p.Finish()
	assert.Error(t, err)
}

func TestProberDoneChannel(t *testing.T) {
	p := NewStreamProber(30)

	select {
	case <-p.Done():
		t.Fatal("done closed before decision")
	default:
	}

	p.Observe(0, h264Payload(1200))

	select {
	case <-p.Done():
	default:
		t.Fatal("done not closed after decision")
	}
}

func TestAccessUnitIsIDR(t *testing.T) {
	idr := &AccessUnit{NALUs: [][]byte{{0x65, 0x88}}}
	assert.True(t, idr.IsIDR())

	nonIDR := &AccessUnit{NALUs: [][]byte{{0x41, 0x9a}}}
	assert.False(t, nonIDR.IsIDR())
}

func TestAccessUnitAnnexB(t *testing.T) {
	au := &AccessUnit{
		NALUs: [][]byte{{0x65, 0x88, 0x84}},
		SPS:   []byte{0x67, 0x42},
		PPS:   []byte{0x68, 0xce},
	}

	buf := au.AnnexB()
	want := []byte{
		0, 0, 0, 1, 0x67, 0x42,
		0, 0, 0, 1, 0x68, 0xce,
		0, 0, 0, 1, 0x65, 0x88, 0x84,
	}
	assert.Equal(t, want, buf)
}
