package hwcodec

import (
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unsafe"
)

// setTable replaces a driver's call table and returns a function that
// restores the previous one.
func setTable(d Driver, enc encodeCalls, dec decodeCalls) (restore func()) {
	tablesMu.Lock()
	defer tablesMu.Unlock()
	loadTables()
	prev := tables[d]
	tables[d] = driverTable{enc: enc, dec: dec}
	return func() {
		tablesMu.Lock()
		tables[d] = prev
		tablesMu.Unlock()
	}
}

// fakeBackend is an in-process driver. Encoded units carry the picture
// geometry so that its decoder can reproduce it; any other input decodes
// to a 64x64 picture.
type fakeBackend struct {
	// Behavior, set before the backend is used.
	refuse          func(name string) bool
	panicOn         string
	encodeStatus    int32
	decodeStatus    int32
	setStatus       int32
	testStatus      int32
	decodePixfmt    PixelFormat
	framesPerDecode int
	adapters        []int64
	supportFn       func(d Driver, mask int32) int32
	hold            time.Duration

	mu              sync.Mutex
	next            uintptr
	sessions        map[uintptr]*fakeSession
	created         int
	destroyed       int
	exclusiveActive int
	exclusiveMax    int
	active          int
	activeMax       int
	lastGPU         int32
	opened          []string
}

type fakeSession struct {
	name      string
	exclusive bool
	width     int
	height    int

	// Buffers handed to callbacks live here so they stay on the heap.
	unit     []byte
	planes   [][]byte
	linesize *[maxDataPlanes]int32
	datas    *[maxDataPlanes]uintptr
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		decodePixfmt:    PixelFormatNV12,
		framesPerDecode: 1,
		adapters:        []int64{101},
		sessions:        make(map[uintptr]*fakeSession),
	}
}

// installFake routes the given drivers to b for the rest of the test.
func installFake(t *testing.T, b *fakeBackend, ds ...Driver) *fakeBackend {
	t.Helper()
	for _, d := range ds {
		table := &fakeTable{backend: b, driver: d}
		t.Cleanup(setTable(d, table, table))
	}
	return b
}

func (b *fakeBackend) open(s *fakeSession) uintptr {
	if b.panicOn != "" && s.name == b.panicOn {
		panic("fake driver crashed opening " + s.name)
	}
	b.mu.Lock()
	b.next++
	h := b.next
	b.sessions[h] = s
	b.created++
	b.active++
	b.activeMax = max(b.activeMax, b.active)
	b.opened = append(b.opened, s.name)
	b.mu.Unlock()
	if s.exclusive {
		b.enterExclusive()
	} else if b.hold > 0 {
		time.Sleep(b.hold)
	}
	return h
}

func (b *fakeBackend) session(h uintptr) *fakeSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions[h]
}

func (b *fakeBackend) close(h uintptr) int32 {
	b.mu.Lock()
	s, ok := b.sessions[h]
	if ok {
		delete(b.sessions, h)
		b.destroyed++
		b.active--
	}
	b.mu.Unlock()
	if !ok {
		return -1
	}
	if s.exclusive {
		b.leaveExclusive()
	}
	return 0
}

func (b *fakeBackend) enterExclusive() {
	b.mu.Lock()
	b.exclusiveActive++
	b.exclusiveMax = max(b.exclusiveMax, b.exclusiveActive)
	b.mu.Unlock()
	if b.hold > 0 {
		time.Sleep(b.hold)
	}
}

func (b *fakeBackend) leaveExclusive() {
	b.mu.Lock()
	b.exclusiveActive--
	b.mu.Unlock()
}

func (b *fakeBackend) counts() (created, destroyed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.created, b.destroyed
}

func (b *fakeBackend) maxExclusive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exclusiveMax
}

// maxActive is the peak number of sessions open at once.
func (b *fakeBackend) maxActive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeMax
}

func (b *fakeBackend) openedNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := append([]string(nil), b.opened...)
	sort.Strings(names)
	return names
}

func (b *fakeBackend) refused(name string) bool {
	return b.refuse != nil && b.refuse(name)
}

// fakeTable serves one driver's encode and decode calls from a backend.
type fakeTable struct {
	backend *fakeBackend
	driver  Driver
}

func (f *fakeTable) support(mask int32) int32 {
	if f.backend.supportFn != nil {
		return f.backend.supportFn(f.driver, mask)
	}
	return mask
}

func (f *fakeTable) newEncoder(p *encoderParams) (uintptr, error) {
	b := f.backend
	name := goString(p.Name)
	if b.refused(name) {
		return 0, nil
	}
	width, height := int(p.Width), int(p.Height)
	linesize, offset, length, err := LinesizeOffsetLength(PixelFormat(p.PixelFormat), width, height, int(p.Align))
	if err != nil {
		return 0, nil
	}
	for i := range linesize {
		p.Linesize[i] = int32(linesize[i])
		p.Offset[i] = int32(offset[i])
	}
	p.Length = int32(length)

	b.mu.Lock()
	b.lastGPU = p.GPU
	b.mu.Unlock()
	return b.open(&fakeSession{
		name:      name,
		exclusive: exclusive(CodecInfo{Name: name, Driver: f.driver}),
		width:     width,
		height:    height,
	}), nil
}

func (f *fakeTable) encode(h uintptr, data []byte, obj uintptr, ms int64) int32 {
	b := f.backend
	s := b.session(h)
	if s == nil {
		return -1
	}
	if b.encodeStatus != 0 {
		return b.encodeStatus
	}
	s.unit = []byte{byte(s.width >> 8), byte(s.width), byte(s.height >> 8), byte(s.height), byte(len(data))}
	onEncodedUnit(uintptr(unsafe.Pointer(&s.unit[0])), int32(len(s.unit)), ms, 1, obj)
	runtime.KeepAlive(s.unit)
	return 0
}

func (f *fakeTable) destroyEncoder(h uintptr) int32 {
	return f.backend.close(h)
}

func (f *fakeTable) setBitrate(h uintptr, kbps int32) int32 {
	return f.backend.setStatus
}

func (f *fakeTable) setFramerate(h uintptr, fps int32) int32 {
	return f.backend.setStatus
}

func (f *fakeTable) testEncode(descs []AdapterDesc, p encodeTestParams) (int, int32) {
	return f.test(descs)
}

func (f *fakeTable) test(descs []AdapterDesc) (int, int32) {
	b := f.backend
	if f.driver == DriverNV {
		b.enterExclusive()
		defer b.leaveExclusive()
	}
	if b.testStatus != 0 {
		return 0, b.testStatus
	}
	n := 0
	for _, luid := range b.adapters {
		if n == len(descs) {
			break
		}
		descs[n] = AdapterDesc{LUID: luid}
		n++
	}
	return n, 0
}

func (f *fakeTable) newDecoder(p *decoderParams) (uintptr, error) {
	b := f.backend
	name := goString(p.Name)
	if b.refused(name) {
		return 0, nil
	}
	return b.open(&fakeSession{
		name:      name,
		exclusive: exclusive(CodecInfo{Name: name, Driver: f.driver, HWDevice: HWDeviceType(p.HWDevice)}),
	}), nil
}

func (f *fakeTable) decode(h uintptr, data []byte, obj uintptr, kind sinkKind) int32 {
	b := f.backend
	s := b.session(h)
	if s == nil {
		return -1
	}
	if b.decodeStatus != 0 {
		return b.decodeStatus
	}
	for i := 0; i < b.framesPerDecode; i++ {
		if kind == sinkTexture {
			onTexture(0x1000+uintptr(i), obj)
			continue
		}
		width, height := 64, 64
		if len(data) == 4 || len(data) == 5 {
			width = int(data[0])<<8 | int(data[1])
			height = int(data[2])<<8 | int(data[3])
		}
		s.fillPicture(b.decodePixfmt, width, height)
		onDecodedFrame(obj, int32(width), int32(height), int32(b.decodePixfmt),
			uintptr(unsafe.Pointer(s.linesize)), uintptr(unsafe.Pointer(s.datas)), 1)
		runtime.KeepAlive(s.planes)
	}
	return 0
}

// fillPicture lays out a picture with plane i filled with byte i+1.
// Unknown formats get three full-size planes.
func (s *fakeSession) fillPicture(pixfmt PixelFormat, width, height int) {
	var strides, rows []int
	switch pixfmt {
	case PixelFormatYUV420P:
		strides = []int{width, width / 2, width / 2}
		rows = []int{height, height / 2, height / 2}
	case PixelFormatNV12:
		strides = []int{width, width}
		rows = []int{height, height / 2}
	default:
		strides = []int{width, width, width}
		rows = []int{height, height, height}
	}
	s.linesize = new([maxDataPlanes]int32)
	s.datas = new([maxDataPlanes]uintptr)
	s.planes = make([][]byte, len(strides))
	for i := range strides {
		plane := make([]byte, strides[i]*rows[i]+1)
		for j := range plane {
			plane[j] = byte(i + 1)
		}
		s.planes[i] = plane
		s.linesize[i] = int32(strides[i])
		s.datas[i] = uintptr(unsafe.Pointer(&plane[0]))
	}
}

func (f *fakeTable) destroyDecoder(h uintptr) int32 {
	return f.backend.close(h)
}

func (f *fakeTable) testDecode(descs []AdapterDesc, api DeviceAPI, format DataFormat, data []byte) (int, int32) {
	return f.test(descs)
}

// goString reads a NUL-terminated string the way a native driver would.
// p refers to Go memory the caller keeps alive, which checkptr cannot
// trace back to an original pointer.
//
//go:nocheckptr
func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	b := (*byte)(unsafe.Pointer(p))
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(b), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(b, n))
}

// Go memory read through uintptrs must pass checkptr, which -race enables.
func TestGoString(t *testing.T) {
	for _, name := range []string{"", "h264", "hevc_nvenc", strings.Repeat("x", 300)} {
		b := cString(name)
		if got := goString(bytesAddr(b)); got != name {
			t.Errorf("goString(cString(%.12q)) = %.12q", name, got)
		}
		runtime.KeepAlive(b)
	}

	fake := installFake(t, newFakeBackend(), DriverFFmpeg)
	enc, err := newEncoder(testEncodeContext(), silentLogger(), -1)
	if err != nil {
		t.Fatalf("newEncoder: %v", err)
	}
	enc.Close()
	if names := fake.openedNames(); len(names) != 1 || names[0] != testEncodeContext().Name {
		t.Errorf("driver saw names %v, want [%s]", names, testEncodeContext().Name)
	}
}

func testReference(f DataFormat) []byte {
	switch f {
	case H264:
		return h264Reference()
	case H265:
		return h265Reference()
	default:
		return nil
	}
}

// testOptions returns prober options for goos with every driver present
// and an Intel host.
func testOptions(goos string) Options {
	return Options{
		GOOS:      goos,
		Logger:    silentLogger(),
		present:   func(Driver, bool) bool { return true },
		cpuVendor: func() string { return intelVendorID },
		reference: testReference,
	}
}

func infoNames(infos []CodecInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	sort.Strings(names)
	return names
}
