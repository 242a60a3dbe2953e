package hwcodec

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
)

// Geometry of the generated reference pictures.
const (
	referenceWidth  = 64
	referenceHeight = 64
)

// ReferenceStream returns a short compressed stream of format f used to
// exercise decoders, or nil when none is available. libhwcodec's embedded
// streams take precedence; H.264 and H.265 fall back to streams generated
// here.
func ReferenceStream(f DataFormat) []byte {
	return referenceFor(f, libraryReferenceStream(f))
}

// referenceFor returns library when it carries format f, else the
// generated stream for f.
func referenceFor(f DataFormat, library []byte) []byte {
	if len(library) > 0 {
		if carriesFormat(library, f) {
			return library
		}
		newLogger(scopeRoot).Warnf("ignoring malformed libhwcodec %s reference stream", f)
	}
	switch f {
	case H264:
		return slices.Clone(h264Reference())
	case H265:
		return slices.Clone(h265Reference())
	default:
		return nil
	}
}

// carriesFormat reports whether data is a stream of format f. Annex-B
// streams must hold only well-formed NAL units of that format.
func carriesFormat(data []byte, f DataFormat) bool {
	if got, ok := DetectFormat(data); !ok || got != f {
		return false
	}
	if (f != H264 && f != H265) || startCodeLen(data) == 0 {
		return true
	}
	for _, nal := range splitAnnexB(data) {
		switch {
		case len(nal) == 0 || nal[0]&0x80 != 0: // forbidden_zero_bit
			return false
		case f == H265 && (len(nal) < 2 || !isH265NALHeader(nal[0], nal[1])):
			return false
		}
	}
	return true
}

var h264Reference = sync.OnceValue(func() []byte {
	stream, err := H264PCMStream(referenceWidth, referenceHeight, 0x80)
	if err != nil {
		panic(err)
	}
	return stream
})

var h265Reference = sync.OnceValue(func() []byte {
	stream, err := H265PCMStream(referenceWidth, referenceHeight, 0x80)
	if err != nil {
		panic(err)
	}
	return stream
})

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// H264PCMStream returns an Annex-B H.264 stream holding one IDR picture of
// uniform color: SPS, PPS and an intra slice whose macroblocks are all
// coded as I_PCM, so every sample is written verbatim. width and height
// must be positive multiples of 16.
func H264PCMStream(width, height int, sample byte) ([]byte, error) {
	if width <= 0 || height <= 0 || width%16 != 0 || height%16 != 0 {
		return nil, fmt.Errorf("%w: %dx%d is not a multiple of 16", ErrInvalidGeometry, width, height)
	}
	mbWidth, mbHeight := width/16, height/16

	var stream bytes.Buffer
	writeNAL := func(header byte, rbsp []byte) {
		stream.Write(annexBStartCode)
		stream.WriteByte(header)
		stream.Write(escapeRBSP(rbsp))
	}
	writeNAL(0x67, h264SPS(mbWidth, mbHeight)) // nal_ref_idc 3, SPS
	writeNAL(0x68, h264PPS())                  // nal_ref_idc 3, PPS
	writeNAL(0x65, h264PCMSlice(mbWidth*mbHeight, sample))
	return stream.Bytes(), nil
}

// h264SPS builds a Baseline profile sequence parameter set
// (ITU-T H.264 Section 7.3.2.1.1).
func h264SPS(mbWidth, mbHeight int) []byte {
	var w bitWriter
	w.writeBits(66, 8) // profile_idc: Baseline
	w.writeBits(0, 8)  // constraint_set flags, reserved_zero_2bits
	w.writeBits(30, 8) // level_idc: 3.0
	w.writeUE(0)       // seq_parameter_set_id
	w.writeUE(0)       // log2_max_frame_num_minus4
	w.writeUE(2)       // pic_order_cnt_type
	w.writeUE(1)       // max_num_ref_frames
	w.writeBit(0)      // gaps_in_frame_num_value_allowed_flag
	w.writeUE(uint32(mbWidth - 1))
	w.writeUE(uint32(mbHeight - 1))
	w.writeBit(1) // frame_mbs_only_flag
	w.writeBit(1) // direct_8x8_inference_flag
	w.writeBit(0) // frame_cropping_flag
	w.writeBit(0) // vui_parameters_present_flag
	return w.trailing()
}

// h264PPS builds a CAVLC picture parameter set with one slice group
// (ITU-T H.264 Section 7.3.2.2).
func h264PPS() []byte {
	var w bitWriter
	w.writeUE(0)      // pic_parameter_set_id
	w.writeUE(0)      // seq_parameter_set_id
	w.writeBit(0)     // entropy_coding_mode_flag: CAVLC
	w.writeBit(0)     // bottom_field_pic_order_in_frame_present_flag
	w.writeUE(0)      // num_slice_groups_minus1
	w.writeUE(0)      // num_ref_idx_l0_default_active_minus1
	w.writeUE(0)      // num_ref_idx_l1_default_active_minus1
	w.writeBit(0)     // weighted_pred_flag
	w.writeBits(0, 2) // weighted_bipred_idc
	w.writeSE(0)      // pic_init_qp_minus26
	w.writeSE(0)      // pic_init_qs_minus26
	w.writeSE(0)      // chroma_qp_index_offset
	w.writeBit(0)     // deblocking_filter_control_present_flag
	w.writeBit(0)     // constrained_intra_pred_flag
	w.writeBit(0)     // redundant_pic_cnt_present_flag
	return w.trailing()
}

// mbTypeIPCM is the I-slice mb_type of a PCM macroblock (Table 7-11).
const mbTypeIPCM = 25

// h264PCMSlice builds an IDR I slice of mbCount I_PCM macroblocks
// (ITU-T H.264 Sections 7.3.3, 7.3.4 and 7.3.5).
func h264PCMSlice(mbCount int, sample byte) []byte {
	var w bitWriter
	w.writeUE(0)      // first_mb_in_slice
	w.writeUE(7)      // slice_type: I, all slices of the picture
	w.writeUE(0)      // pic_parameter_set_id
	w.writeBits(0, 4) // frame_num
	w.writeUE(0)      // idr_pic_id
	w.writeBit(0)     // no_output_of_prior_pics_flag
	w.writeBit(0)     // long_term_reference_flag
	w.writeSE(0)      // slice_qp_delta

	// 16x16 luma and two 8x8 chroma blocks, 8 bits per sample
	samples := bytes.Repeat([]byte{sample}, 256+2*64)
	for i := 0; i < mbCount; i++ {
		w.writeUE(mbTypeIPCM)
		w.alignZero() // pcm_alignment_zero_bit
		w.writeBytes(samples)
	}
	return w.trailing()
}

// H265PCMStream returns an Annex-B H.265 stream holding one IDR picture of
// uniform color: VPS, SPS, PPS and an intra slice of 16x16 coding tree
// units, each a single PCM coding unit. width and height must be positive
// multiples of 16.
func H265PCMStream(width, height int, sample byte) ([]byte, error) {
	if width <= 0 || height <= 0 || width%16 != 0 || height%16 != 0 {
		return nil, fmt.Errorf("%w: %dx%d is not a multiple of 16", ErrInvalidGeometry, width, height)
	}

	var stream bytes.Buffer
	writeNAL := func(nalType byte, rbsp []byte) {
		stream.Write(annexBStartCode)
		stream.WriteByte(nalType << 1) // nuh_layer_id 0
		stream.WriteByte(0x01)         // nuh_temporal_id_plus1
		stream.Write(escapeRBSP(rbsp))
	}
	writeNAL(32, h265VPS())
	writeNAL(33, h265SPS(width, height))
	writeNAL(34, h265PPS())
	writeNAL(19, h265PCMSlice((width/16)*(height/16), sample)) // IDR_W_RADL
	return stream.Bytes(), nil
}

// h265ProfileTierLevel writes profile_tier_level(1, 0) for Main profile,
// level 2 (ITU-T H.265 Section 7.3.3).
func h265ProfileTierLevel(w *bitWriter) {
	w.writeBits(0, 2)           // general_profile_space
	w.writeBit(0)               // general_tier_flag
	w.writeBits(1, 5)           // general_profile_idc: Main
	w.writeBits(0x60000000, 32) // compatible with Main and Main 10
	w.writeBit(1)               // general_progressive_source_flag
	w.writeBit(0)               // general_interlaced_source_flag
	w.writeBit(0)               // general_non_packed_constraint_flag
	w.writeBit(1)               // general_frame_only_constraint_flag
	w.writeBits(0, 43)          // general_reserved_zero_43bits
	w.writeBit(0)               // general_reserved_zero_bit
	w.writeBits(60, 8)          // general_level_idc: 2.0
}

// h265VPS builds a single layer video parameter set
// (ITU-T H.265 Section 7.3.2.1).
func h265VPS() []byte {
	var w bitWriter
	w.writeBits(0, 4)       // vps_video_parameter_set_id
	w.writeBit(1)           // vps_base_layer_internal_flag
	w.writeBit(1)           // vps_base_layer_available_flag
	w.writeBits(0, 6)       // vps_max_layers_minus1
	w.writeBits(0, 3)       // vps_max_sub_layers_minus1
	w.writeBit(1)           // vps_temporal_id_nesting_flag
	w.writeBits(0xFFFF, 16) // vps_reserved_0xffff_16bits
	h265ProfileTierLevel(&w)
	w.writeBit(1)     // vps_sub_layer_ordering_info_present_flag
	w.writeUE(0)      // vps_max_dec_pic_buffering_minus1
	w.writeUE(0)      // vps_max_num_reorder_pics
	w.writeUE(0)      // vps_max_latency_increase_plus1
	w.writeBits(0, 6) // vps_max_layer_id
	w.writeUE(0)      // vps_num_layer_sets_minus1
	w.writeBit(0)     // vps_timing_info_present_flag
	w.writeBit(0)     // vps_extension_flag
	return w.trailing()
}

// h265SPS builds a 4:2:0 8-bit sequence parameter set with 16x16 coding
// tree blocks and 16x16 PCM coding units (ITU-T H.265 Section 7.3.2.2).
func h265SPS(width, height int) []byte {
	var w bitWriter
	w.writeBits(0, 4) // sps_video_parameter_set_id
	w.writeBits(0, 3) // sps_max_sub_layers_minus1
	w.writeBit(1)     // sps_temporal_id_nesting_flag
	h265ProfileTierLevel(&w)
	w.writeUE(0) // sps_seq_parameter_set_id
	w.writeUE(1) // chroma_format_idc: 4:2:0
	w.writeUE(uint32(width))
	w.writeUE(uint32(height))
	w.writeBit(0)     // conformance_window_flag
	w.writeUE(0)      // bit_depth_luma_minus8
	w.writeUE(0)      // bit_depth_chroma_minus8
	w.writeUE(4)      // log2_max_pic_order_cnt_lsb_minus4
	w.writeBit(1)     // sps_sub_layer_ordering_info_present_flag
	w.writeUE(0)      // sps_max_dec_pic_buffering_minus1
	w.writeUE(0)      // sps_max_num_reorder_pics
	w.writeUE(0)      // sps_max_latency_increase_plus1
	w.writeUE(1)      // log2_min_luma_coding_block_size_minus3
	w.writeUE(0)      // log2_diff_max_min_luma_coding_block_size
	w.writeUE(0)      // log2_min_luma_transform_block_size_minus2
	w.writeUE(2)      // log2_diff_max_min_luma_transform_block_size
	w.writeUE(0)      // max_transform_hierarchy_depth_inter
	w.writeUE(0)      // max_transform_hierarchy_depth_intra
	w.writeBit(0)     // scaling_list_enabled_flag
	w.writeBit(0)     // amp_enabled_flag
	w.writeBit(0)     // sample_adaptive_offset_enabled_flag
	w.writeBit(1)     // pcm_enabled_flag
	w.writeBits(7, 4) // pcm_sample_bit_depth_luma_minus1
	w.writeBits(7, 4) // pcm_sample_bit_depth_chroma_minus1
	w.writeUE(1)      // log2_min_pcm_luma_coding_block_size_minus3
	w.writeUE(0)      // log2_diff_max_min_pcm_luma_coding_block_size
	w.writeBit(1)     // pcm_loop_filter_disabled_flag
	w.writeUE(0)      // num_short_term_ref_pic_sets
	w.writeBit(0)     // long_term_ref_pics_present_flag
	w.writeBit(0)     // sps_temporal_mvp_enabled_flag
	w.writeBit(0)     // strong_intra_smoothing_enabled_flag
	w.writeBit(0)     // vui_parameters_present_flag
	w.writeBit(0)     // sps_extension_present_flag
	return w.trailing()
}

// h265PPS builds a picture parameter set with deblocking disabled
// (ITU-T H.265 Section 7.3.2.3).
func h265PPS() []byte {
	var w bitWriter
	w.writeUE(0)      // pps_pic_parameter_set_id
	w.writeUE(0)      // pps_seq_parameter_set_id
	w.writeBit(0)     // dependent_slice_segments_enabled_flag
	w.writeBit(0)     // output_flag_present_flag
	w.writeBits(0, 3) // num_extra_slice_header_bits
	w.writeBit(0)     // sign_data_hiding_enabled_flag
	w.writeBit(0)     // cabac_init_present_flag
	w.writeUE(0)      // num_ref_idx_l0_default_active_minus1
	w.writeUE(0)      // num_ref_idx_l1_default_active_minus1
	w.writeSE(0)      // init_qp_minus26
	w.writeBit(0)     // constrained_intra_pred_flag
	w.writeBit(0)     // transform_skip_enabled_flag
	w.writeBit(0)     // cu_qp_delta_enabled_flag
	w.writeSE(0)      // pps_cb_qp_offset
	w.writeSE(0)      // pps_cr_qp_offset
	w.writeBit(0)     // pps_slice_chroma_qp_offsets_present_flag
	w.writeBit(0)     // weighted_pred_flag
	w.writeBit(0)     // weighted_bipred_flag
	w.writeBit(0)     // transquant_bypass_enabled_flag
	w.writeBit(0)     // tiles_enabled_flag
	w.writeBit(0)     // entropy_coding_sync_enabled_flag
	w.writeBit(0)     // pps_loop_filter_across_slices_enabled_flag
	w.writeBit(1)     // deblocking_filter_control_present_flag
	w.writeBit(0)     // deblocking_filter_override_enabled_flag
	w.writeBit(1)     // pps_deblocking_filter_disabled_flag
	w.writeBit(0)     // pps_scaling_list_data_present_flag
	w.writeBit(0)     // lists_modification_present_flag
	w.writeUE(0)      // log2_parallel_merge_level_minus2
	w.writeBit(0)     // slice_segment_header_extension_present_flag
	w.writeBit(0)     // pps_extension_present_flag
	return w.trailing()
}

// partModeInit is the initValue of the first part_mode context in I
// slices (Table 9-11).
const partModeInit = 184

// h265PCMSlice builds an IDR I slice segment of ctuCount coding tree
// units, each coded as one 2Nx2N PCM unit (ITU-T H.265 Sections 7.3.6,
// 7.3.8 and 9.3).
func h265PCMSlice(ctuCount int, sample byte) []byte {
	var w bitWriter
	w.writeBit(1) // first_slice_segment_in_pic_flag
	w.writeBit(0) // no_output_of_prior_pics_flag
	w.writeUE(0)  // slice_pic_parameter_set_id
	w.writeUE(2)  // slice_type: I
	w.writeSE(0)  // slice_qp_delta
	w.writeBit(1) // alignment_bit_equal_to_one
	w.alignZero()

	// 16x16 luma and two 8x8 chroma blocks, 8 bits per sample
	samples := bytes.Repeat([]byte{sample}, 256+2*64)
	partMode := newCabacContext(partModeInit, 26)
	e := newCabacEncoder(&w)
	for i := 0; i < ctuCount; i++ {
		e.encodeDecision(&partMode, 1) // part_mode: PART_2Nx2N
		e.encodeTerminate(1)           // pcm_flag
		w.alignZero()                  // pcm_alignment_zero_bit
		w.writeBytes(samples)
		e.reset()
		var last uint8
		if i == ctuCount-1 {
			last = 1
		}
		e.encodeTerminate(last) // end_of_slice_segment_flag
	}
	// The final flush wrote rbsp_stop_one_bit.
	w.alignZero()
	return w.buf
}
