package hwcodec

// DetectFormat detects the bitstream format of raw compressed data.
// Supports detection of:
//   - H.264/AVC: Annex-B format (ITU-T H.264) and AVCC format (ISO/IEC 14496-15)
//   - H.265/HEVC: Annex-B format (ITU-T H.265)
//   - VP8: RFC 6386 - VP8 Data Format and Decoding Guide
//   - VP9: VP9 Bitstream & Decoding Process Specification
//   - AV1: AV1 Bitstream & Decoding Process Specification
//   - IVF: WebM Project container format
//
// The second result is false if the format cannot be determined.
func DetectFormat(data []byte) (DataFormat, bool) {
	if len(data) < 4 {
		return 0, false
	}

	// Check for Annex-B start code (H.264/H.265)
	if offset := startCodeLen(data); offset > 0 && len(data) > offset {
		nal := data[offset:]
		if isH264NALHeader(nal[0]) {
			return H264, true
		}
		if len(nal) >= 2 && isH265NALHeader(nal[0], nal[1]) {
			return H265, true
		}
	}

	// Check for AVCC format (H.264 in container)
	if isAVCCFormat(data) {
		return H264, true
	}

	// Check for IVF header (VP8/VP9/AV1)
	if len(data) >= 32 && string(data[0:4]) == "DKIF" {
		switch string(data[8:12]) {
		case "VP80":
			return VP8, true
		case "VP90":
			return VP9, true
		case "AV01":
			return AV1, true
		}
	}

	if isVP8Keyframe(data) {
		return VP8, true
	}
	if isVP9Frame(data) {
		return VP9, true
	}
	if isAV1OBU(data) {
		return AV1, true
	}
	return 0, false
}

// startCodeLen returns the length of the Annex-B start code data begins
// with, or 0. Per ITU-T H.264 Annex B, NAL units are prefixed with:
//   - 4-byte start code: 0x00000001 (used at stream start and after certain NALUs)
//   - 3-byte start code: 0x000001 (used between NALUs)
func startCodeLen(data []byte) int {
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return 4
	}
	if len(data) >= 3 && data[0] == 0 && data[1] == 0 && data[2] == 1 {
		return 3
	}
	return 0
}

// isH264NALHeader checks the one-byte NAL unit header of ITU-T H.264
// Section 7.3.1 for the unit types that start real streams:
//   - 1: Non-IDR slice, 5: IDR slice, 6: SEI, 7: SPS, 8: PPS, 9: AUD
//
// The nal_ref_idc constraints of Section 7.4.1 are applied so that H.265
// headers are not mistaken for H.264 ones.
func isH264NALHeader(b byte) bool {
	if b&0x80 != 0 {
		return false
	}
	refIdc := (b >> 5) & 0x03
	switch b & 0x1F {
	case 1:
		return true
	case 5, 7, 8:
		return refIdc != 0
	case 6, 9:
		return refIdc == 0
	default:
		return false
	}
}

// isH265NALHeader checks the two-byte NAL unit header of ITU-T H.265
// Section 7.3.1.2:
//   - forbidden_zero_bit (1 bit), nal_unit_type (6 bits), nuh_layer_id (6 bits)
//   - nuh_temporal_id_plus1 (3 bits): must not be 0
func isH265NALHeader(b0, b1 byte) bool {
	if b0&0x80 != 0 || b1&0x07 == 0 {
		return false
	}
	t := (b0 >> 1) & 0x3F
	return t <= 9 || (t >= 16 && t <= 21) || (t >= 32 && t <= 40)
}

// isAVCCFormat checks for AVCC (length-prefixed) format.
// Per ISO/IEC 14496-15 (MPEG-4 Part 15), AVCC format uses:
//   - 4-byte big-endian NAL unit length prefix instead of start codes
//   - Commonly used in MP4/MOV containers and RTMP streams
func isAVCCFormat(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	length := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	return length > 0 && length < len(data) && length < 10*1024*1024
}

// isVP8Keyframe checks for VP8 keyframe signature.
// Per RFC 6386 Section 9.1, bytes 3-5 of a keyframe hold the start code
// 0x9D 0x01 0x2A.
func isVP8Keyframe(data []byte) bool {
	if len(data) < 10 || data[0]&0x01 != 0 {
		return false
	}
	return data[3] == 0x9D && data[4] == 0x01 && data[5] == 0x2A
}

// isVP9Frame checks for the VP9 frame_marker (2 bits, always 0b10).
func isVP9Frame(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	return (data[0]>>6)&0x03 == 0x02
}

// isAV1OBU checks for an AV1 OBU header: forbidden bit 0 and a defined
// obu_type (1-8 or 15).
func isAV1OBU(data []byte) bool {
	if len(data) < 2 || (data[0]>>7)&0x01 != 0 {
		return false
	}
	obuType := (data[0] >> 3) & 0x0F
	return (obuType >= 1 && obuType <= 8) || obuType == 15
}

// splitAnnexB splits an Annex-B byte stream into NAL units without their
// start codes.
func splitAnnexB(data []byte) [][]byte {
	var nalUnits [][]byte
	start := -1

	for i := 0; i < len(data); i++ {
		n := startCodeLen(data[i:])
		if n == 0 {
			continue
		}
		if start >= 0 && i > start {
			nalUnits = append(nalUnits, data[start:i])
		}
		start = i + n
		i += n - 1
	}
	if start >= 0 && start < len(data) {
		nalUnits = append(nalUnits, data[start:])
	}
	return nalUnits
}

// bitWriter packs an RBSP most significant bit first.
type bitWriter struct {
	buf  []byte
	cur  byte
	bits uint
}

func (w *bitWriter) writeBit(b uint) {
	w.cur = w.cur<<1 | byte(b&1)
	w.bits++
	if w.bits == 8 {
		w.buf = append(w.buf, w.cur)
		w.cur, w.bits = 0, 0
	}
}

func (w *bitWriter) writeBits(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		w.writeBit(uint(v>>uint(i)) & 1)
	}
}

// writeUE writes v as unsigned Exp-Golomb, ue(v).
func (w *bitWriter) writeUE(v uint32) {
	x := uint64(v) + 1
	n := 0
	for t := x; t > 1; t >>= 1 {
		n++
	}
	w.writeBits(0, n)
	w.writeBits(x, n+1)
}

// writeSE writes v as signed Exp-Golomb, se(v).
func (w *bitWriter) writeSE(v int32) {
	if v > 0 {
		w.writeUE(uint32(2*v - 1))
	} else {
		w.writeUE(uint32(-2 * v))
	}
}

func (w *bitWriter) aligned() bool { return w.bits == 0 }

// alignZero pads with zero bits up to the next byte boundary.
func (w *bitWriter) alignZero() {
	for !w.aligned() {
		w.writeBit(0)
	}
}

// writeBytes appends whole bytes. The writer must be aligned.
func (w *bitWriter) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// trailing writes rbsp_trailing_bits and returns the RBSP.
func (w *bitWriter) trailing() []byte {
	w.writeBit(1)
	w.alignZero()
	return w.buf
}

// escapeRBSP inserts emulation prevention bytes so that no 0x000000,
// 0x000001, 0x000002 or 0x000003 sequence appears in the NAL payload.
func escapeRBSP(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+len(rbsp)/64)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			out = append(out, 0x03)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}
