//go:build darwin || linux

// Native call tables bound from libhwcodec using purego.

package hwcodec

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	libOnce   sync.Once
	libHandle uintptr
	libErr    error
)

func loadLibrary() (uintptr, error) {
	libOnce.Do(func() {
		libHandle, libErr = openLibrary(libraryPaths(envConfig().LibPath))
		if libErr != nil {
			newLogger(scopeRoot).Debugf("libhwcodec unavailable: %v", libErr)
		}
	})
	return libHandle, libErr
}

func openLibrary(paths []string) (uintptr, error) {
	var lastErr error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return handle, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrLibraryNotFound, lastErr)
	}
	return 0, ErrLibraryNotFound
}

// LibraryAvailable reports whether libhwcodec could be loaded.
func LibraryAvailable() bool {
	_, err := loadLibrary()
	return err == nil
}

func libraryPaths(libPath string) []string {
	var paths []string

	libName := "libhwcodec.so"
	if runtime.GOOS == "darwin" {
		libName = "libhwcodec.dylib"
	}

	// Configured location (highest priority), a file or a directory
	if libPath != "" {
		if info, err := os.Stat(libPath); err == nil && info.IsDir() {
			paths = append(paths, filepath.Join(libPath, libName))
		} else {
			paths = append(paths, libPath)
		}
	}

	// Search relative to executable location
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	// Search relative to module root (find go.mod from cwd)
	if moduleRoot := findModuleRoot(); moduleRoot != "" {
		paths = append(paths,
			filepath.Join(moduleRoot, "build", libName),
			filepath.Join(moduleRoot, "build", "ffi", libName),
		)
	}

	// System paths (lowest priority)
	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}

	return paths
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// bindFunc registers the symbol name into fptr. Dlsym is checked first
// because RegisterLibFunc panics on a missing symbol.
func bindFunc(handle uintptr, fptr any, name string) error {
	sym, err := purego.Dlsym(handle, name)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDriverUnavailable, name, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

type binding struct {
	fptr any
	name string
}

func bindAll(handle uintptr, bindings []binding) error {
	for _, b := range bindings {
		if err := bindFunc(handle, b.fptr, b.name); err != nil {
			return err
		}
	}
	return nil
}

// Runtime libraries each native driver needs on Linux.
var (
	linuxCUDALibs   = []string{"libcuda.so.1"}
	linuxNVENCLibs  = []string{"libnvidia-encode.so.1"}
	linuxNVDECLibs  = []string{"libnvcuvid.so.1"}
	linuxAMFLibs    = []string{"libamfrt64.so.1"}
	linuxVPLAnyLibs = []string{"libvpl.so.2", "libmfx.so.1", "libmfx-gen.so.1.2", "libmfxhw64.so.1"}
)

var (
	presenceMu    sync.Mutex
	presenceCache = map[string]bool{}
)

// canDlopen reports whether the named shared library loads.
func canDlopen(name string) bool {
	presenceMu.Lock()
	defer presenceMu.Unlock()
	if ok, seen := presenceCache[name]; seen {
		return ok
	}
	handle, err := purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_LOCAL)
	ok := err == nil
	if ok {
		purego.Dlclose(handle)
	}
	presenceCache[name] = ok
	return ok
}

func allLoad(names []string) bool {
	for _, name := range names {
		if !canDlopen(name) {
			return false
		}
	}
	return true
}

func anyLoads(names []string) bool {
	for _, name := range names {
		if canDlopen(name) {
			return true
		}
	}
	return false
}

// driverPresent reports whether the vendor runtime behind d is installed.
func driverPresent(d Driver, encode bool) bool {
	switch runtime.GOOS {
	case "linux":
		switch d {
		case DriverNV:
			if encode {
				return allLoad(linuxCUDALibs) && allLoad(linuxNVENCLibs)
			}
			return allLoad(linuxCUDALibs) && allLoad(linuxNVDECLibs)
		case DriverAMF:
			return allLoad(linuxAMFLibs)
		case DriverVPL:
			return anyLoads(linuxVPLAnyLibs)
		case DriverFFmpeg:
			return true
		}
	case "darwin":
		// VideoToolbox ships with the OS and is reached through FFmpeg.
		return d == DriverFFmpeg
	}
	return false
}

// driverSupport narrows mask to the formats the driver handles. The
// optional <prefix>_driver_support export refines it when present.
type driverSupport struct {
	driver Driver
	encode bool
	once   sync.Once
	fn     func(mask int32) int32
}

func (s *driverSupport) support(mask int32) int32 {
	if !driverPresent(s.driver, s.encode) {
		return -1
	}
	s.once.Do(func() {
		handle, err := loadLibrary()
		if err != nil {
			return
		}
		if bindFunc(handle, &s.fn, s.driver.prefix()+"_driver_support") != nil {
			s.fn = nil
		}
	})
	if s.fn == nil {
		return mask
	}
	got := s.fn(mask)
	if got < 0 {
		return got
	}
	return got & mask
}

type nativeEncodeCalls struct {
	driverSupport

	bindOnce sync.Once
	bindErr  error

	fnNew          func(params uintptr) uintptr
	fnEncode       func(enc, data uintptr, length int32, callback, obj uintptr, ms int64) int32
	fnDestroy      func(enc uintptr) int32
	fnSetBitrate   func(enc uintptr, kbps int32) int32
	fnSetFramerate func(enc uintptr, fps int32) int32
	fnTest         func(descs uintptr, maxDescs int32, count uintptr, api, format, width, height, kbps, fps, gop int32) int32
}

func (c *nativeEncodeCalls) bind() error {
	c.bindOnce.Do(func() {
		handle, err := loadLibrary()
		if err != nil {
			c.bindErr = fmt.Errorf("%w: %s: %v", ErrDriverUnavailable, c.driver, err)
			return
		}
		p := c.driver.prefix()
		c.bindErr = bindAll(handle, []binding{
			{&c.fnNew, p + "_new_encoder"},
			{&c.fnEncode, p + "_encode"},
			{&c.fnDestroy, p + "_destroy_encoder"},
			{&c.fnSetBitrate, p + "_set_bitrate"},
			{&c.fnSetFramerate, p + "_set_framerate"},
			{&c.fnTest, p + "_test_encode"},
		})
	})
	return c.bindErr
}

func (c *nativeEncodeCalls) newEncoder(p *encoderParams) (uintptr, error) {
	if err := c.bind(); err != nil {
		return 0, err
	}
	h := c.fnNew(uintptr(unsafe.Pointer(p)))
	runtime.KeepAlive(p)
	return h, nil
}

func (c *nativeEncodeCalls) encode(h uintptr, data []byte, obj uintptr, ms int64) int32 {
	if c.bind() != nil {
		return -1
	}
	callback, _, _ := nativeCallbacks()
	ret := c.fnEncode(h, bytesAddr(data), int32(len(data)), callback, obj, ms)
	runtime.KeepAlive(data)
	return ret
}

func (c *nativeEncodeCalls) destroyEncoder(h uintptr) int32 {
	if c.bind() != nil {
		return -1
	}
	return c.fnDestroy(h)
}

func (c *nativeEncodeCalls) setBitrate(h uintptr, kbps int32) int32 {
	if c.bind() != nil {
		return -1
	}
	return c.fnSetBitrate(h, kbps)
}

func (c *nativeEncodeCalls) setFramerate(h uintptr, fps int32) int32 {
	if c.bind() != nil {
		return -1
	}
	return c.fnSetFramerate(h, fps)
}

func (c *nativeEncodeCalls) testEncode(descs []AdapterDesc, p encodeTestParams) (int, int32) {
	if c.bind() != nil || len(descs) == 0 {
		return 0, -1
	}
	count := new(int32)
	ret := c.fnTest(uintptr(unsafe.Pointer(&descs[0])), int32(len(descs)), uintptr(unsafe.Pointer(count)),
		int32(p.API), int32(p.Format), p.Width, p.Height, p.Kbps, p.FPS, p.GOP)
	runtime.KeepAlive(descs)
	return clampCount(*count, len(descs)), ret
}

type nativeDecodeCalls struct {
	driverSupport

	bindOnce sync.Once
	bindErr  error

	fnNew     func(params uintptr) uintptr
	fnDecode  func(dec, data uintptr, length int32, callback, obj uintptr) int32
	fnDestroy func(dec uintptr) int32
	fnTest    func(descs uintptr, maxDescs int32, count uintptr, api, format int32, data uintptr, length int32) int32
}

func (c *nativeDecodeCalls) bind() error {
	c.bindOnce.Do(func() {
		handle, err := loadLibrary()
		if err != nil {
			c.bindErr = fmt.Errorf("%w: %s: %v", ErrDriverUnavailable, c.driver, err)
			return
		}
		p := c.driver.prefix()
		c.bindErr = bindAll(handle, []binding{
			{&c.fnNew, p + "_new_decoder"},
			{&c.fnDecode, p + "_decode"},
			{&c.fnDestroy, p + "_destroy_decoder"},
			{&c.fnTest, p + "_test_decode"},
		})
	})
	return c.bindErr
}

func (c *nativeDecodeCalls) newDecoder(p *decoderParams) (uintptr, error) {
	if err := c.bind(); err != nil {
		return 0, err
	}
	h := c.fnNew(uintptr(unsafe.Pointer(p)))
	runtime.KeepAlive(p)
	return h, nil
}

func (c *nativeDecodeCalls) decode(h uintptr, data []byte, obj uintptr, kind sinkKind) int32 {
	if c.bind() != nil {
		return -1
	}
	_, planes, texture := nativeCallbacks()
	callback := planes
	if kind == sinkTexture {
		callback = texture
	}
	ret := c.fnDecode(h, bytesAddr(data), int32(len(data)), callback, obj)
	runtime.KeepAlive(data)
	return ret
}

func (c *nativeDecodeCalls) destroyDecoder(h uintptr) int32 {
	if c.bind() != nil {
		return -1
	}
	return c.fnDestroy(h)
}

func (c *nativeDecodeCalls) testDecode(descs []AdapterDesc, api DeviceAPI, f DataFormat, data []byte) (int, int32) {
	if c.bind() != nil || len(descs) == 0 {
		return 0, -1
	}
	count := new(int32)
	ret := c.fnTest(uintptr(unsafe.Pointer(&descs[0])), int32(len(descs)), uintptr(unsafe.Pointer(count)),
		int32(api), int32(f), bytesAddr(data), int32(len(data)))
	runtime.KeepAlive(descs)
	runtime.KeepAlive(data)
	return clampCount(*count, len(descs)), ret
}

func nativeTable(d Driver) (encodeCalls, decodeCalls) {
	return &nativeEncodeCalls{driverSupport: driverSupport{driver: d, encode: true}},
		&nativeDecodeCalls{driverSupport: driverSupport{driver: d}}
}

var (
	referenceOnce sync.Once
	referenceFn   func(format int32, out, length uintptr) int32
)

// libraryReferenceStream returns the sample bitstream libhwcodec embeds for
// f, or nil when the library does not export one.
func libraryReferenceStream(f DataFormat) []byte {
	referenceOnce.Do(func() {
		handle, err := loadLibrary()
		if err != nil {
			return
		}
		if err := bindFunc(handle, &referenceFn, "hwcodec_reference_stream"); err != nil {
			referenceFn = nil
		}
	})
	if referenceFn == nil {
		return nil
	}
	out := new(uintptr)
	n := new(int32)
	if ret := referenceFn(int32(f), uintptr(unsafe.Pointer(out)), uintptr(unsafe.Pointer(n))); ret != 0 || *out == 0 || *n <= 0 {
		return nil
	}
	return copyBytes(*out, int(*n))
}

func clampCount(n int32, limit int) int {
	if n < 0 {
		return 0
	}
	return min(int(n), limit)
}
