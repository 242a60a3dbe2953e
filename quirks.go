package hwcodec

import (
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

const intelVendorID = "GenuineIntel"

// hostCPUVendor returns the CPUID vendor string of the first CPU, or ""
// when it cannot be read.
var hostCPUVendor = sync.OnceValue(func() string {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		newLogger(scopeProbe).Debugf("cpu vendor unknown: %v", err)
		return ""
	}
	return infos[0].VendorID
})

// intelMediaPath reports whether c runs on Intel's media stack.
func intelMediaPath(c CodecInfo) bool {
	return c.Driver == DriverVPL || strings.Contains(c.Name, "qsv")
}

// applyQuirks adjusts priorities for host-specific behavior. Intel media
// codecs only keep PriorityBest on Intel CPUs. An unknown vendor leaves
// priorities untouched.
func applyQuirks(infos []CodecInfo, cpuVendor string) []CodecInfo {
	if cpuVendor == "" || cpuVendor == intelVendorID {
		return infos
	}
	for i := range infos {
		if intelMediaPath(infos[i]) && infos[i].Priority > PriorityGood {
			infos[i].Priority = PriorityGood
		}
	}
	return infos
}
