// Package hwcodec discovers which hardware and software video codecs work
// on the current machine and opens encoder and decoder sessions on them,
// backed by the native libhwcodec driver wrappers.
//
// Key pieces include:
//   - Encoder, Decoder and TextureDecoder sessions over one native instance each
//   - Prober, which trial-runs every candidate codec for the host OS
//   - Registry, which caches probe results for the life of the process
//   - Prioritized and SortByPriority for picking the best codec per format
//   - Manifest, a persisted allow-list of drivers known to work
//   - Packetizer for sending encoded units over RTP
//
// # Architecture
//
//	Discovery: candidates -> manifest filter -> trial encode/decode -> quirks -> []CodecInfo
//	Encode:    EncodeContext -> driver call table -> native encoder -> []EncodeFrame -> Packetizer
//	Decode:    DecodeContext -> driver call table -> native decoder -> []DecodeFrame or textures
//
// Each Driver (NV, AMF, VPL, FFmpeg) has its own call table. Native
// callbacks deliver output into a per-call sink, so results never leak
// between calls or sessions.
//
// # Native Library
//
// Bindings load libhwcodec through purego, so no C toolchain is needed.
// Without the library every driver reports itself unavailable and
// discovery returns only what needs no native code.
//
// # Configuration
//
// The default registry reads HWCODEC_* environment variables:
//   - HWCODEC_LIB_PATH: libhwcodec file or directory
//   - HWCODEC_LOG_LEVEL: disabled, error, warn, info, debug or trace
//   - HWCODEC_NVENC_GPU: NVENC GPU ordinal, -1 lets the driver pick
//   - HWCODEC_PROBE_WORKERS: concurrent probe tasks
//   - HWCODEC_MANIFEST: capability manifest path
//   - HWCODEC_SOFTWARE_ENCODERS: append libx264/libx265 to encoder results
//
// LoadConfig reads the same keys from a YAML file.
package hwcodec
