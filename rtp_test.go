package hwcodec

import (
	"testing"

	"github.com/pion/rtp"
)

func testFrame(n int, pts int64) EncodeFrame {
	frame := EncodeFrame{Data: make([]byte, n), PTS: pts, Key: true}
	for i := range frame.Data {
		frame.Data[i] = byte(i)
	}
	return frame
}

func TestPacketizer_Header(t *testing.T) {
	pkt, err := NewPacketizer(VP8, 12345, 96, 0)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}

	packets := pkt.Packetize(testFrame(500, 1000))
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	h := packets[0].Header
	if h.SSRC != 12345 {
		t.Errorf("SSRC = %d, want 12345", h.SSRC)
	}
	if h.PayloadType != 96 {
		t.Errorf("PayloadType = %d, want 96", h.PayloadType)
	}
	if h.Timestamp != 90000 {
		t.Errorf("Timestamp = %d, want 90000", h.Timestamp)
	}
	if !h.Marker {
		t.Error("Last packet should have marker bit set")
	}
}

func TestPacketizer_LargeFrame(t *testing.T) {
	pkt, err := NewPacketizer(VP8, 1, 96, 1200)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}

	packets := pkt.Packetize(testFrame(10000, 33))
	if len(packets) < 9 {
		t.Fatalf("Expected at least 9 packets, got %d", len(packets))
	}

	for i, p := range packets {
		if last := i == len(packets)-1; p.Header.Marker != last {
			t.Errorf("Packet %d marker = %v", i, p.Header.Marker)
		}
		if p.Header.Timestamp != packets[0].Header.Timestamp {
			t.Errorf("Packet %d timestamp %d differs", i, p.Header.Timestamp)
		}
		if i > 0 && p.Header.SequenceNumber != packets[i-1].Header.SequenceNumber+1 {
			t.Errorf("Packet %d sequence %d does not follow %d", i, p.Header.SequenceNumber, packets[i-1].Header.SequenceNumber)
		}
		if size := p.MarshalSize(); size > 1200 {
			t.Errorf("Packet %d is %d bytes, over the MTU", i, size)
		}
	}
}

func TestPacketizer_H264(t *testing.T) {
	pkt, err := NewPacketizer(H264, 7, 102, 300)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}

	packets := pkt.Packetize(EncodeFrame{Data: h264Reference(), PTS: 2000, Key: true})
	if len(packets) < 2 {
		t.Fatalf("Expected fragmented packets, got %d", len(packets))
	}
	for i, p := range packets {
		if size := p.MarshalSize(); size > 300 {
			t.Errorf("Packet %d is %d bytes, over the MTU", i, size)
		}
		if p.Header.Timestamp != 180000 {
			t.Errorf("Packet %d timestamp = %d, want 180000", i, p.Header.Timestamp)
		}
	}
}

func TestPacketizer_DefaultMTU(t *testing.T) {
	pkt, err := NewPacketizer(H265, 9, 100, 0)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}

	frame := EncodeFrame{Data: h265Reference(), PTS: 40, Key: true}
	packets := pkt.Packetize(frame)
	if len(packets) < 2 {
		t.Fatalf("%d byte frame in %d packets, want fragments", len(frame.Data), len(packets))
	}
	for i, p := range packets {
		if size := p.MarshalSize(); size > DefaultMTU {
			t.Errorf("Packet %d is %d bytes, over the default MTU", i, size)
		}
	}
}

func TestPacketizer_ToBytes(t *testing.T) {
	pkt, err := NewPacketizer(VP8, 43, 99, 600)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}

	raw, err := pkt.PacketizeToBytes(testFrame(2000, 0))
	if err != nil {
		t.Fatalf("PacketizeToBytes failed: %v", err)
	}
	if len(raw) < 4 {
		t.Fatalf("got %d packets, want at least 4", len(raw))
	}
	for i, b := range raw {
		var p rtp.Packet
		if err := p.Unmarshal(b); err != nil {
			t.Fatalf("packet %d does not parse: %v", i, err)
		}
		if p.SSRC != 43 || p.PayloadType != 99 || p.Version != 2 {
			t.Errorf("packet %d header = %+v", i, p.Header)
		}
	}
}

func TestPacketizer_Empty(t *testing.T) {
	pkt, err := NewPacketizer(H265, 1, 96, 0)
	if err != nil {
		t.Fatalf("NewPacketizer failed: %v", err)
	}
	if packets := pkt.Packetize(EncodeFrame{}); packets != nil {
		t.Errorf("empty frame produced %d packets", len(packets))
	}
	raw, err := pkt.PacketizeToBytes(EncodeFrame{})
	if err != nil || len(raw) != 0 {
		t.Errorf("PacketizeToBytes(empty) = %d packets, %v", len(raw), err)
	}
}

func TestNewPacketizer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		format DataFormat
		mtu    int
	}{
		{"unknown format", DataFormat(9), 1200},
		{"header sized mtu", H264, rtpHeaderSize},
		{"tiny mtu", VP8, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPacketizer(tt.format, 1, 96, tt.mtu); err == nil {
				t.Error("NewPacketizer succeeded, want an error")
			}
		})
	}
}
