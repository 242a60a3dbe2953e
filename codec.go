package hwcodec

import (
	"fmt"
	"strings"
)

// DataFormat identifies a compressed video bitstream format.
// Values match the native wrapper's enum.
type DataFormat int32

const (
	H264 DataFormat = iota
	H265
	VP8
	VP9
	AV1
)

// dataFormats lists every format tracked by CodecInfos, in native order.
var dataFormats = []DataFormat{H264, H265, VP8, VP9, AV1}

func (f DataFormat) String() string {
	switch f {
	case H264:
		return "H264"
	case H265:
		return "H265"
	case VP8:
		return "VP8"
	case VP9:
		return "VP9"
	case AV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this format.
func (f DataFormat) MimeType() string {
	switch f {
	case H264:
		return "video/H264"
	case H265:
		return "video/H265"
	case VP8:
		return "video/VP8"
	case VP9:
		return "video/VP9"
	case AV1:
		return "video/AV1"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this format.
func (f DataFormat) ClockRate() uint32 {
	// All video formats use 90kHz clock
	return 90000
}

// mask returns the bit used for this format in driver support masks.
func (f DataFormat) mask() int32 {
	return 1 << uint32(f)
}

func (f DataFormat) MarshalText() ([]byte, error) {
	if f.MimeType() == "" {
		return nil, fmt.Errorf("hwcodec: unknown data format %d", int32(f))
	}
	return []byte(strings.ToLower(f.String())), nil
}

func (f *DataFormat) UnmarshalText(text []byte) error {
	for _, df := range dataFormats {
		if strings.EqualFold(string(text), df.String()) {
			*f = df
			return nil
		}
	}
	return fmt.Errorf("hwcodec: unknown data format %q", text)
}

// Driver selects the backend call table a codec is reached through.
type Driver int32

const (
	DriverNV Driver = iota
	DriverAMF
	DriverVPL
	DriverFFmpeg

	driverCount
)

var drivers = []Driver{DriverNV, DriverAMF, DriverVPL, DriverFFmpeg}

func (d Driver) String() string {
	switch d {
	case DriverNV:
		return "NV"
	case DriverAMF:
		return "AMF"
	case DriverVPL:
		return "VPL"
	case DriverFFmpeg:
		return "FFmpeg"
	default:
		return "Unknown"
	}
}

// prefix returns the symbol prefix of the driver's exports in libhwcodec.
func (d Driver) prefix() string {
	return strings.ToLower(d.String())
}

func (d Driver) valid() bool {
	return d >= 0 && d < driverCount
}

func (d Driver) MarshalText() ([]byte, error) {
	if !d.valid() {
		return nil, fmt.Errorf("hwcodec: unknown driver %d", int32(d))
	}
	return []byte(d.prefix()), nil
}

func (d *Driver) UnmarshalText(text []byte) error {
	for _, drv := range drivers {
		if strings.EqualFold(string(text), drv.String()) {
			*d = drv
			return nil
		}
	}
	return fmt.Errorf("hwcodec: unknown driver %q", text)
}

// Vendor identifies the hardware vendor behind a codec.
type Vendor int32

const (
	VendorOther Vendor = iota
	VendorNVIDIA
	VendorAMD
	VendorIntel
	VendorApple
)

func (v Vendor) String() string {
	switch v {
	case VendorNVIDIA:
		return "NVIDIA"
	case VendorAMD:
		return "AMD"
	case VendorIntel:
		return "Intel"
	case VendorApple:
		return "Apple"
	default:
		return "Other"
	}
}

// driver returns the native driver whose runtime gates this vendor's codecs.
func (v Vendor) driver() (Driver, bool) {
	switch v {
	case VendorNVIDIA:
		return DriverNV, true
	case VendorAMD:
		return DriverAMF, true
	case VendorIntel:
		return DriverVPL, true
	default:
		return 0, false
	}
}

// DeviceAPI is the GPU API a VRAM codec runs on.
// APINone marks a codec that exchanges frames through host memory.
type DeviceAPI int32

const (
	APINone DeviceAPI = iota
	APIDX11
	APIOpenCL
	APIOpenGL
	APIVulkan
)

func (a DeviceAPI) String() string {
	switch a {
	case APINone:
		return "None"
	case APIDX11:
		return "DX11"
	case APIOpenCL:
		return "OpenCL"
	case APIOpenGL:
		return "OpenGL"
	case APIVulkan:
		return "Vulkan"
	default:
		return "Unknown"
	}
}

// HWDeviceType is an FFmpeg hardware device kind. Values match
// AVHWDeviceType.
type HWDeviceType int32

const (
	HWDeviceNone HWDeviceType = iota
	HWDeviceVDPAU
	HWDeviceCUDA
	HWDeviceVAAPI
	HWDeviceDXVA2
	HWDeviceQSV
	HWDeviceVideoToolbox
	HWDeviceD3D11VA
)

func (h HWDeviceType) String() string {
	switch h {
	case HWDeviceNone:
		return "none"
	case HWDeviceVDPAU:
		return "vdpau"
	case HWDeviceCUDA:
		return "cuda"
	case HWDeviceVAAPI:
		return "vaapi"
	case HWDeviceDXVA2:
		return "dxva2"
	case HWDeviceQSV:
		return "qsv"
	case HWDeviceVideoToolbox:
		return "videotoolbox"
	case HWDeviceD3D11VA:
		return "d3d11va"
	default:
		return "unknown"
	}
}

// Priority ranks codecs of the same format. Higher values win.
type Priority int32

const (
	PriorityBest   Priority = 0
	PriorityGood   Priority = -1
	PriorityNormal Priority = -2
	PrioritySoft   Priority = -3
	PriorityBad    Priority = -4
)

func (p Priority) String() string {
	switch p {
	case PriorityBest:
		return "Best"
	case PriorityGood:
		return "Good"
	case PriorityNormal:
		return "Normal"
	case PrioritySoft:
		return "Soft"
	case PriorityBad:
		return "Bad"
	default:
		return fmt.Sprintf("Priority(%d)", int32(p))
	}
}

// Quality is the encoder speed/quality preset.
type Quality int32

const (
	QualityBest Quality = iota
	QualityBalanced
	QualitySpeed
	QualityLow
)

func (q Quality) String() string {
	switch q {
	case QualityBest:
		return "Best"
	case QualityBalanced:
		return "Balanced"
	case QualitySpeed:
		return "Speed"
	case QualityLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// RateControl defines the encoder rate control mode.
type RateControl int32

const (
	RateControlCBR RateControl = iota // Constant bitrate
	RateControlVBR                    // Variable bitrate
	RateControlCQ                     // Constant quality
)

func (r RateControl) String() string {
	switch r {
	case RateControlCBR:
		return "CBR"
	case RateControlVBR:
		return "VBR"
	case RateControlCQ:
		return "CQ"
	default:
		return "Unknown"
	}
}
