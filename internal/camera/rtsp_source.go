package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtph264"
	"github.com/pion/rtp"

	"github.com/surfvision/camtuner/internal/logger"
)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// H.264 NAL unit types the source tracks
const (
	nalTypeIDR = 5
	nalTypeSPS = 7
	nalTypePPS = 8
)

// maxKeyFrameUnits bounds how many access units CaptureKeyFrame will sift
// through while waiting for an IDR
const maxKeyFrameUnits = 200

// SourceConfig configures one RTSP connection
type SourceConfig struct {
	URL             string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxProbePackets int
}

// AccessUnit is one decoded H.264 access unit plus the parameter sets seen
// so far
type AccessUnit struct {
	NALUs    [][]byte
	SPS      []byte
	PPS      []byte
	Received time.Time
}

// IsIDR reports whether the access unit contains a keyframe slice
func (au *AccessUnit) IsIDR() bool {
	for _, nalu := range au.NALUs {
		if len(nalu) > 0 && nalu[0]&0x1F == nalTypeIDR {
			return true
		}
	}
	return false
}

// AnnexB serializes the access unit with start codes, prepending SPS and
// PPS so the result is independently decodable
func (au *AccessUnit) AnnexB() []byte {
	var out []byte
	appendNAL := func(nalu []byte) {
		out = append(out, annexBStartCode...)
		out = append(out, nalu...)
	}
	if len(au.SPS) > 0 {
		appendNAL(au.SPS)
	}
	if len(au.PPS) > 0 {
		appendNAL(au.PPS)
	}
	for _, nalu := range au.NALUs {
		if len(nalu) == 0 {
			continue
		}
		t := nalu[0] & 0x1F
		if t == nalTypeSPS || t == nalTypePPS {
			continue
		}
		appendNAL(nalu)
	}
	return out
}

// Source is a one-shot RTSP consumer: connect, identify the video stream,
// pull access units, close. The capture loop owns one per cycle.
//
// Stream identification runs in three steps: a typed H.264 format in the
// session description wins outright; otherwise early packets are scanned
// for Annex-B start codes; failing that, the busiest stream is taken.
type Source struct {
	cfg SourceConfig
	log *logger.Logger

	mu        sync.Mutex
	client    *gortsplib.Client
	decoder   *rtph264.Decoder
	method    ProbeMethod
	sps       []byte
	pps       []byte
	selected  int
	connected bool

	units chan *AccessUnit
}

// NewSource creates an RTSP source for the given URL
func NewSource(cfg SourceConfig, log *logger.Logger) *Source {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	return &Source{
		cfg:      cfg,
		log:      log,
		selected: -1,
		units:    make(chan *AccessUnit, 1),
	}
}

// Connect dials the camera, identifies the video stream and starts
// playback. Interleaved TCP transport is forced; cameras on lossy links
// corrupt frames badly over UDP.
func (s *Source) Connect(ctx context.Context) error {
	u, err := base.ParseURL(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid RTSP URL %s: %w", s.cfg.URL, err)
	}

	transport := gortsplib.TransportTCP
	client := &gortsplib.Client{
		Transport:    &transport,
		ReadTimeout:  s.cfg.ConnectTimeout,
		WriteTimeout: s.cfg.ConnectTimeout,
	}

	desc, _, err := client.Describe(u)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to describe stream: %w", err)
	}

	decoder := &rtph264.Decoder{}
	if err := decoder.Init(); err != nil {
		client.Close()
		return fmt.Errorf("failed to init H264 decoder: %w", err)
	}
	s.mu.Lock()
	s.decoder = decoder
	s.mu.Unlock()

	// Step 1: a typed H.264 format in the SDP settles it
	sdpIndex := -1
	for i, media := range desc.Medias {
		for _, forma := range media.Formats {
			if h264, ok := forma.(*format.H264); ok {
				sdpIndex = i
				s.mu.Lock()
				s.sps = h264.SPS
				s.pps = h264.PPS
				s.mu.Unlock()
			}
		}
		if sdpIndex >= 0 {
			break
		}
	}

	if err := client.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		client.Close()
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	var prober *StreamProber
	if sdpIndex >= 0 {
		s.setSelected(sdpIndex, ProbeMethodSDP)
	} else {
		// Steps 2 and 3 need to see packets first
		prober = NewStreamProber(s.cfg.MaxProbePackets)
	}

	for i, media := range desc.Medias {
		streamIndex := i
		s.registerHandlers(client, media, streamIndex, prober)
	}

	if _, err := client.Play(nil); err != nil {
		client.Close()
		return fmt.Errorf("failed to play stream: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.connected = true
	s.mu.Unlock()

	if prober != nil {
		if err := s.waitForProbe(ctx, prober); err != nil {
			s.Close()
			return err
		}
	}

	s.log.Info("RTSP stream connected",
		"url", s.cfg.URL,
		"stream", s.SelectedStream(),
		"method", string(s.Method()))
	return nil
}

func (s *Source) registerHandlers(client *gortsplib.Client, media *description.Media, streamIndex int, prober *StreamProber) {
	for _, forma := range media.Formats {
		client.OnPacketRTP(media, forma, func(pkt *rtp.Packet) {
			if prober != nil {
				prober.Observe(streamIndex, pkt.Payload)
			}
			if s.SelectedStream() == streamIndex {
				s.handlePacket(pkt)
			}
		})
	}
}

// waitForProbe blocks until the prober decides or the connect timeout
// expires, then commits the chosen stream
func (s *Source) waitForProbe(ctx context.Context, prober *StreamProber) error {
	select {
	case <-prober.Done():
	case <-time.After(s.cfg.ConnectTimeout):
	case <-ctx.Done():
		return ctx.Err()
	}

	index, method, err := prober.Finish()
	if err != nil {
		return fmt.Errorf("could not identify video stream: %w", err)
	}
	s.setSelected(index, method)
	return nil
}

// handlePacket depacketizes RTP into access units. Only one unit is
// buffered; a slow consumer sees the freshest frame, not a backlog.
func (s *Source) handlePacket(pkt *rtp.Packet) {
	s.mu.Lock()
	decoder := s.decoder
	s.mu.Unlock()
	if decoder == nil {
		return
	}

	nalus, err := decoder.Decode(pkt)
	if err != nil {
		// Incomplete access units are normal mid-frame
		return
	}

	s.mu.Lock()
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case nalTypeSPS:
			s.sps = append([]byte(nil), nalu...)
		case nalTypePPS:
			s.pps = append([]byte(nil), nalu...)
		}
	}
	au := &AccessUnit{
		NALUs:    nalus,
		SPS:      s.sps,
		PPS:      s.pps,
		Received: time.Now(),
	}
	s.mu.Unlock()

	select {
	case s.units <- au:
	default:
		// Drop the stale unit and offer the fresh one
		select {
		case <-s.units:
		default:
		}
		select {
		case s.units <- au:
		default:
		}
	}
}

// ReadAccessUnit returns the next access unit, or an error on timeout or
// cancellation
func (s *Source) ReadAccessUnit(ctx context.Context) (*AccessUnit, error) {
	timer := time.NewTimer(s.cfg.ReadTimeout)
	defer timer.Stop()

	select {
	case au := <-s.units:
		return au, nil
	case <-timer.C:
		return nil, fmt.Errorf("no access unit within %s", s.cfg.ReadTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CaptureKeyFrame waits for the next IDR access unit and returns it as an
// independently decodable Annex-B buffer
func (s *Source) CaptureKeyFrame(ctx context.Context) ([]byte, error) {
	for i := 0; i < maxKeyFrameUnits; i++ {
		au, err := s.ReadAccessUnit(ctx)
		if err != nil {
			return nil, err
		}
		if au.IsIDR() {
			return au.AnnexB(), nil
		}
	}
	return nil, fmt.Errorf("no keyframe within %d access units", maxKeyFrameUnits)
}

// Close tears down the RTSP session
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.connected = false
}

// IsConnected reports whether the session is up
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// SelectedStream returns the index of the chosen media stream, or -1
// before identification completes
func (s *Source) SelectedStream() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Method returns how the video stream was identified
func (s *Source) Method() ProbeMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

func (s *Source) setSelected(index int, method ProbeMethod) {
	s.mu.Lock()
	s.selected = index
	s.method = method
	s.mu.Unlock()
}
