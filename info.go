package hwcodec

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pion/webrtc/v4"
)

// CodecInfo describes one codec found working on this machine.
type CodecInfo struct {
	Name     string       `yaml:"name" msgpack:"name"`
	Format   DataFormat   `yaml:"format" msgpack:"format"`
	Driver   Driver       `yaml:"driver" msgpack:"driver"`
	Vendor   Vendor       `yaml:"vendor" msgpack:"vendor"`
	Priority Priority     `yaml:"priority" msgpack:"priority"`
	API      DeviceAPI    `yaml:"api" msgpack:"api"`
	HWDevice HWDeviceType `yaml:"hwdevice" msgpack:"hwdevice"`
	LUID     int64        `yaml:"luid,omitempty" msgpack:"luid,omitempty"`
}

func (c CodecInfo) String() string {
	if c.API != APINone {
		return fmt.Sprintf("%s (%s %s %s, luid %d, %s)", c.Name, c.Driver, c.Format, c.API, c.LUID, c.Priority)
	}
	return fmt.Sprintf("%s (%s %s, %s)", c.Name, c.Driver, c.Format, c.Priority)
}

// VRAM reports whether the codec keeps frames in GPU memory.
func (c CodecInfo) VRAM() bool {
	return c.API != APINone
}

// EncodeContext returns base with the codec identity fields taken from c.
func (c CodecInfo) EncodeContext(base EncodeContext) EncodeContext {
	base.Name = c.Name
	base.Driver = c.Driver
	base.Format = c.Format
	base.API = c.API
	base.LUID = c.LUID
	return base
}

// DecodeContext returns a decode context that opens this codec.
func (c CodecInfo) DecodeContext(threads int) DecodeContext {
	return DecodeContext{
		Name:     c.Name,
		Driver:   c.Driver,
		Format:   c.Format,
		API:      c.API,
		HWDevice: c.HWDevice,
		LUID:     c.LUID,
		Threads:  threads,
	}
}

// Capability returns the WebRTC codec capability for the codec's format.
func (c CodecInfo) Capability() webrtc.RTPCodecCapability {
	capability := webrtc.RTPCodecCapability{ClockRate: c.Format.ClockRate()}
	switch c.Format {
	case H264:
		capability.MimeType = webrtc.MimeTypeH264
		capability.SDPFmtpLine = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"
	case H265:
		capability.MimeType = webrtc.MimeTypeH265
	case VP8:
		capability.MimeType = webrtc.MimeTypeVP8
	case VP9:
		capability.MimeType = webrtc.MimeTypeVP9
		capability.SDPFmtpLine = "profile-id=0"
	case AV1:
		capability.MimeType = webrtc.MimeTypeAV1
	}
	return capability
}

// CodecInfos holds the best codec per tracked format. A nil field means
// nothing was found for that format.
type CodecInfos struct {
	H264 *CodecInfo `yaml:"h264,omitempty" msgpack:"h264,omitempty"`
	H265 *CodecInfo `yaml:"h265,omitempty" msgpack:"h265,omitempty"`
	VP8  *CodecInfo `yaml:"vp8,omitempty" msgpack:"vp8,omitempty"`
	VP9  *CodecInfo `yaml:"vp9,omitempty" msgpack:"vp9,omitempty"`
	AV1  *CodecInfo `yaml:"av1,omitempty" msgpack:"av1,omitempty"`
}

// Get returns the entry for f, or nil.
func (c CodecInfos) Get(f DataFormat) *CodecInfo {
	if slot := c.slot(f); slot != nil {
		return *slot
	}
	return nil
}

func (c *CodecInfos) slot(f DataFormat) **CodecInfo {
	switch f {
	case H264:
		return &c.H264
	case H265:
		return &c.H265
	case VP8:
		return &c.VP8
	case VP9:
		return &c.VP9
	case AV1:
		return &c.AV1
	default:
		return nil
	}
}

// Prioritized keeps, for each format, the entry with the highest priority.
// On equal priority the entry seen first wins.
func Prioritized(infos []CodecInfo) CodecInfos {
	var out CodecInfos
	for i := range infos {
		slot := out.slot(infos[i].Format)
		if slot == nil {
			continue
		}
		if *slot == nil || infos[i].Priority > (*slot).Priority {
			info := infos[i]
			*slot = &info
		}
	}
	return out
}

// SortByPriority returns a copy of infos ordered by descending priority,
// keeping the input order among equals.
func SortByPriority(infos []CodecInfo) []CodecInfo {
	sorted := slices.Clone(infos)
	slices.SortStableFunc(sorted, func(a, b CodecInfo) int {
		return int(b.Priority) - int(a.Priority)
	})
	return sorted
}

// FormatFromName maps an FFmpeg codec name prefix to its format.
func FormatFromName(name string) (DataFormat, bool) {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "h264"):
		return H264, true
	case strings.HasPrefix(name, "hevc"), strings.HasPrefix(name, "h265"):
		return H265, true
	case strings.HasPrefix(name, "vp8"):
		return VP8, true
	case strings.HasPrefix(name, "vp9"):
		return VP9, true
	case strings.HasPrefix(name, "av1"):
		return AV1, true
	default:
		return 0, false
	}
}

// SoftwareDecoders returns the software decoders appended to every decoder
// probe result.
func SoftwareDecoders() []CodecInfo {
	return []CodecInfo{
		{Name: "h264", Format: H264, Driver: DriverFFmpeg, Vendor: VendorOther, Priority: PrioritySoft},
		{Name: "hevc", Format: H265, Driver: DriverFFmpeg, Vendor: VendorOther, Priority: PrioritySoft},
	}
}

// SoftwareEncoders returns the software encoders appended to encoder probe
// results when enabled.
func SoftwareEncoders() []CodecInfo {
	return []CodecInfo{
		{Name: "libx264", Format: H264, Driver: DriverFFmpeg, Vendor: VendorOther, Priority: PrioritySoft},
		{Name: "libx265", Format: H265, Driver: DriverFFmpeg, Vendor: VendorOther, Priority: PrioritySoft},
	}
}
