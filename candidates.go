package hwcodec

import (
	"fmt"
	"strings"
)

// platformCodec is an FFmpeg-named codec known to exist on one OS.
type platformCodec struct {
	goos string
	info CodecInfo
}

func ffmpegCodec(goos, name string, f DataFormat, v Vendor, p Priority, hw HWDeviceType) platformCodec {
	return platformCodec{goos: goos, info: CodecInfo{
		Name:     name,
		Format:   f,
		Driver:   DriverFFmpeg,
		Vendor:   v,
		Priority: p,
		HWDevice: hw,
	}}
}

// Host-memory encoders reached through FFmpeg. NVENC is left out on
// Windows, where concurrent sessions have been seen to hang the GPU.
var ramEncoders = []platformCodec{
	ffmpegCodec("windows", "h264_mf", H264, VendorOther, PriorityGood, HWDeviceNone),
	ffmpegCodec("windows", "hevc_mf", H265, VendorOther, PriorityGood, HWDeviceNone),
	ffmpegCodec("windows", "h264_amf", H264, VendorAMD, PriorityBest, HWDeviceNone),
	ffmpegCodec("windows", "hevc_amf", H265, VendorAMD, PriorityBest, HWDeviceNone),
	ffmpegCodec("linux", "h264_nvenc", H264, VendorNVIDIA, PriorityGood, HWDeviceNone),
	ffmpegCodec("linux", "hevc_nvenc", H265, VendorNVIDIA, PriorityGood, HWDeviceNone),
	ffmpegCodec("linux", "h264_amf", H264, VendorAMD, PriorityBest, HWDeviceNone),
	ffmpegCodec("linux", "hevc_amf", H265, VendorAMD, PriorityBest, HWDeviceNone),
	ffmpegCodec("linux", "h264_qsv", H264, VendorIntel, PriorityBest, HWDeviceNone),
	ffmpegCodec("linux", "hevc_qsv", H265, VendorIntel, PriorityBest, HWDeviceNone),
	ffmpegCodec("linux", "h264_vaapi", H264, VendorOther, PriorityGood, HWDeviceNone),
	ffmpegCodec("linux", "hevc_vaapi", H265, VendorOther, PriorityGood, HWDeviceNone),
	ffmpegCodec("darwin", "h264_videotoolbox", H264, VendorApple, PriorityBest, HWDeviceNone),
	ffmpegCodec("darwin", "hevc_videotoolbox", H265, VendorApple, PriorityBest, HWDeviceNone),
}

// Host-memory decoders: FFmpeg's native decoders with a hardware device.
var ramDecoders = []platformCodec{
	ffmpegCodec("linux", "h264", H264, VendorNVIDIA, PriorityGood, HWDeviceCUDA),
	ffmpegCodec("linux", "hevc", H265, VendorNVIDIA, PriorityGood, HWDeviceCUDA),
	ffmpegCodec("linux", "h264", H264, VendorOther, PriorityGood, HWDeviceVAAPI),
	ffmpegCodec("linux", "hevc", H265, VendorOther, PriorityGood, HWDeviceVAAPI),
	ffmpegCodec("windows", "h264", H264, VendorOther, PriorityBest, HWDeviceD3D11VA),
	ffmpegCodec("windows", "hevc", H265, VendorOther, PriorityBest, HWDeviceD3D11VA),
	ffmpegCodec("darwin", "h264", H264, VendorApple, PriorityBest, HWDeviceVideoToolbox),
	ffmpegCodec("darwin", "hevc", H265, VendorApple, PriorityBest, HWDeviceVideoToolbox),
}

// vramPath is a native driver running on one GPU API. The driver's support
// mask decides which of formats become candidates.
type vramPath struct {
	goos    string
	driver  Driver
	vendor  Vendor
	api     DeviceAPI
	formats []DataFormat
}

var vramEncoders = []vramPath{
	{"windows", DriverNV, VendorNVIDIA, APIDX11, []DataFormat{H264, H265}},
	{"windows", DriverAMF, VendorAMD, APIDX11, []DataFormat{H264, H265}},
	{"windows", DriverVPL, VendorIntel, APIDX11, []DataFormat{H264, H265}},
	{"linux", DriverAMF, VendorAMD, APIVulkan, []DataFormat{H264, H265}},
	{"linux", DriverAMF, VendorAMD, APIOpenCL, []DataFormat{H264, H265}},
}

// AMF decodes H.264 only.
var vramDecoders = []vramPath{
	{"windows", DriverNV, VendorNVIDIA, APIDX11, []DataFormat{H264, H265}},
	{"windows", DriverAMF, VendorAMD, APIDX11, []DataFormat{H264}},
	{"windows", DriverVPL, VendorIntel, APIDX11, []DataFormat{H264, H265}},
	{"linux", DriverAMF, VendorAMD, APIVulkan, []DataFormat{H264}},
}

// vramName returns the name VRAM codecs are reported under, e.g. "nv_h264".
func vramName(d Driver, f DataFormat) string {
	return fmt.Sprintf("%s_%s", d.prefix(), strings.ToLower(f.String()))
}

func (p *Prober) ramCandidates(table []platformCodec, encode bool) []CodecInfo {
	var out []CodecInfo
	for _, pc := range table {
		if pc.goos != p.opts.GOOS {
			continue
		}
		if d, gated := pc.info.Vendor.driver(); gated && !p.opts.present(d, encode) {
			continue
		}
		if !p.opts.Manifest.Allows(encode, pc.info) {
			continue
		}
		out = append(out, pc.info)
	}
	return out
}

func (p *Prober) vramCandidates(table []vramPath, encode bool) []CodecInfo {
	var out []CodecInfo
	for _, path := range table {
		if path.goos != p.opts.GOOS || !p.opts.present(path.driver, encode) {
			continue
		}
		var mask int32
		for _, f := range path.formats {
			mask |= f.mask()
		}
		supported := p.support(path.driver, encode, mask)
		if supported <= 0 {
			continue
		}
		for _, f := range path.formats {
			if supported&f.mask() == 0 {
				continue
			}
			info := CodecInfo{
				Name:     vramName(path.driver, f),
				Format:   f,
				Driver:   path.driver,
				Vendor:   path.vendor,
				Priority: PriorityBest,
				API:      path.api,
			}
			if p.opts.Manifest.Allows(encode, info) {
				out = append(out, info)
			}
		}
	}
	return out
}

func (p *Prober) support(d Driver, encode bool, mask int32) int32 {
	if encode {
		calls, err := encodeTable(d)
		if err != nil {
			return -1
		}
		return calls.support(mask)
	}
	calls, err := decodeTable(d)
	if err != nil {
		return -1
	}
	return calls.support(mask)
}

func (p *Prober) encoderCandidates(ctx EncodeContext) []CodecInfo {
	cands := p.ramCandidates(ramEncoders, true)
	// QSV does not accept planar YUV420P input.
	if ctx.PixelFormat == PixelFormatYUV420P {
		kept := cands[:0]
		for _, c := range cands {
			if !strings.Contains(c.Name, "qsv") {
				kept = append(kept, c)
			}
		}
		cands = kept
	}
	return append(cands, p.vramCandidates(vramEncoders, true)...)
}

func (p *Prober) decoderCandidates() []CodecInfo {
	return append(p.ramCandidates(ramDecoders, false), p.vramCandidates(vramDecoders, false)...)
}

// exclusive reports whether probing c must not overlap with other
// exclusive probes. NVIDIA contexts and D3D11VA devices corrupt shared
// driver state when created concurrently.
func exclusive(c CodecInfo) bool {
	return c.Driver == DriverNV ||
		strings.Contains(c.Name, "nvenc") ||
		c.HWDevice == HWDeviceCUDA ||
		c.HWDevice == HWDeviceD3D11VA
}
