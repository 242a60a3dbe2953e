package hwcodec

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// DefaultMTU is the default maximum RTP packet size.
const DefaultMTU = 1200

// rtpHeaderSize is the fixed RTP header length without CSRCs or extensions.
const rtpHeaderSize = 12

// Packetizer splits encoded frames into RTP packets using pion's payloaders.
type Packetizer struct {
	format      DataFormat
	ssrc        uint32
	payloadType uint8
	mtu         int
	sequencer   rtp.Sequencer
	payloader   rtp.Payloader
	mu          sync.Mutex
}

// NewPacketizer creates an RTP packetizer for encoded frames of format.
func NewPacketizer(format DataFormat, ssrc uint32, pt uint8, mtu int) (*Packetizer, error) {
	if mtu <= 0 {
		mtu = DefaultMTU
	}
	if mtu <= rtpHeaderSize {
		return nil, fmt.Errorf("hwcodec: mtu %d too small", mtu)
	}
	payloader, err := newPayloader(format)
	if err != nil {
		return nil, err
	}
	return &Packetizer{
		format:      format,
		ssrc:        ssrc,
		payloadType: pt,
		mtu:         mtu,
		sequencer:   rtp.NewRandomSequencer(),
		payloader:   payloader,
	}, nil
}

func newPayloader(format DataFormat) (rtp.Payloader, error) {
	switch format {
	case H264:
		return &codecs.H264Payloader{}, nil
	case H265:
		return &codecs.H265Payloader{}, nil
	case VP8:
		return &codecs.VP8Payloader{}, nil
	case VP9:
		return &codecs.VP9Payloader{}, nil
	case AV1:
		return &codecs.AV1Payloader{}, nil
	default:
		return nil, fmt.Errorf("hwcodec: no RTP payloader for %s", format)
	}
}

// Packetize converts an encoded frame to RTP packets. The RTP timestamp is
// the frame PTS converted from milliseconds to the 90kHz clock.
func (p *Packetizer) Packetize(frame EncodeFrame) []*rtp.Packet {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(frame.Data) == 0 {
		return nil
	}
	payloads := p.payloader.Payload(uint16(p.mtu-rtpHeaderSize), frame.Data)
	if len(payloads) == 0 {
		return nil
	}

	timestamp := uint32(frame.PTS * int64(p.format.ClockRate()) / 1000)
	packets := make([]*rtp.Packet, len(payloads))
	for i, payload := range payloads {
		packets[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == len(payloads)-1,
				PayloadType:    p.payloadType,
				SequenceNumber: p.sequencer.NextSequenceNumber(),
				Timestamp:      timestamp,
				SSRC:           p.ssrc,
			},
			Payload: payload,
		}
	}
	return packets
}

// PacketizeToBytes converts an encoded frame to raw RTP packet bytes.
func (p *Packetizer) PacketizeToBytes(frame EncodeFrame) ([][]byte, error) {
	packets := p.Packetize(frame)
	result := make([][]byte, len(packets))
	for i, pkt := range packets {
		raw, err := pkt.Marshal()
		if err != nil {
			return nil, fmt.Errorf("hwcodec: marshal rtp packet: %w", err)
		}
		result[i] = raw
	}
	return result, nil
}
