package hwcodec

import (
	"fmt"
	"sync"
)

const (
	// maxDataPlanes is the plane capacity of the native frame arrays.
	maxDataPlanes = 8
	// maxAdapters bounds the adapter descriptors a native test may fill.
	maxAdapters = 4
)

// AdapterDesc identifies one GPU adapter that passed a native test.
type AdapterDesc struct {
	LUID int64
}

// encoderParams mirrors hwcodec_encoder_params in hwcodec.h.
// Linesize, Offset and Length are filled by the native create call.
// Must be heap-allocated for purego to pass it safely.
type encoderParams struct {
	Name        uintptr // NUL-terminated codec name
	MCName      uintptr // NUL-terminated secondary codec name, may be 0
	Device      uintptr
	LUID        int64
	API         int32
	Format      int32
	Width       int32
	Height      int32
	PixelFormat int32
	Align       int32
	Kbps        int32
	FPS         int32
	GOP         int32
	Quality     int32
	RateControl int32
	Threads     int32
	GPU         int32
	Linesize    [maxDataPlanes]int32
	Offset      [maxDataPlanes]int32
	Length      int32
}

// decoderParams mirrors hwcodec_decoder_params in hwcodec.h.
type decoderParams struct {
	Name               uintptr
	Device             uintptr
	LUID               int64
	API                int32
	Format             int32
	HWDevice           int32
	Threads            int32
	OutputSharedHandle int32
}

// encodeTestParams carries the geometry a native encode test runs with.
type encodeTestParams struct {
	API    DeviceAPI
	Format DataFormat
	Width  int32
	Height int32
	Kbps   int32
	FPS    int32
	GOP    int32
}

// sinkKind selects which native callback a decode call reports through.
type sinkKind int

const (
	sinkPlanes sinkKind = iota
	sinkTexture
)

// encodeCalls is the encoder half of a driver's call table.
type encodeCalls interface {
	// newEncoder returns a native handle, 0 when the driver refused the
	// parameters, or an error when the driver itself is unavailable.
	newEncoder(p *encoderParams) (uintptr, error)
	encode(h uintptr, data []byte, obj uintptr, ms int64) int32
	destroyEncoder(h uintptr) int32
	setBitrate(h uintptr, kbps int32) int32
	setFramerate(h uintptr, fps int32) int32
	// testEncode fills descs with the adapters able to encode and returns
	// how many it filled along with the native status.
	testEncode(descs []AdapterDesc, p encodeTestParams) (int, int32)
	// support returns the subset of mask the driver can handle, or a
	// negative value when the driver runtime is absent.
	support(mask int32) int32
}

// decodeCalls is the decoder half of a driver's call table.
type decodeCalls interface {
	newDecoder(p *decoderParams) (uintptr, error)
	decode(h uintptr, data []byte, obj uintptr, kind sinkKind) int32
	destroyDecoder(h uintptr) int32
	testDecode(descs []AdapterDesc, api DeviceAPI, f DataFormat, data []byte) (int, int32)
	support(mask int32) int32
}

type driverTable struct {
	enc encodeCalls
	dec decodeCalls
}

// Driver call tables, indexed by Driver.
var (
	tablesMu    sync.RWMutex
	tables      [driverCount]driverTable
	tablesReady bool
)

func loadTables() {
	if tablesReady {
		return
	}
	for _, d := range drivers {
		enc, dec := nativeTable(d)
		tables[d] = driverTable{enc: enc, dec: dec}
	}
	tablesReady = true
}

func tableFor(d Driver) (driverTable, error) {
	if !d.valid() {
		return driverTable{}, fmt.Errorf("%w: %d", ErrDriverUnavailable, int32(d))
	}
	tablesMu.RLock()
	if tablesReady {
		t := tables[d]
		tablesMu.RUnlock()
		return t, nil
	}
	tablesMu.RUnlock()

	tablesMu.Lock()
	defer tablesMu.Unlock()
	loadTables()
	return tables[d], nil
}

func encodeTable(d Driver) (encodeCalls, error) {
	t, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	return t.enc, nil
}

func decodeTable(d Driver) (decodeCalls, error) {
	t, err := tableFor(d)
	if err != nil {
		return nil, err
	}
	return t.dec, nil
}
