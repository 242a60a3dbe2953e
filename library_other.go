//go:build !darwin && !linux

package hwcodec

// Without purego there is no way to reach libhwcodec; every driver reports
// itself unavailable and probing yields only the software fallbacks.

// LibraryAvailable reports whether libhwcodec could be loaded.
func LibraryAvailable() bool {
	return false
}

func driverPresent(Driver, bool) bool {
	return false
}

func libraryReferenceStream(DataFormat) []byte {
	return nil
}

type unavailableEncodeCalls struct{ driver Driver }

func (unavailableEncodeCalls) newEncoder(*encoderParams) (uintptr, error) {
	return 0, ErrDriverUnavailable
}

func (unavailableEncodeCalls) encode(uintptr, []byte, uintptr, int64) int32 {
	return -1
}

func (unavailableEncodeCalls) destroyEncoder(uintptr) int32 {
	return -1
}

func (unavailableEncodeCalls) setBitrate(uintptr, int32) int32 {
	return -1
}

func (unavailableEncodeCalls) setFramerate(uintptr, int32) int32 {
	return -1
}

func (unavailableEncodeCalls) testEncode([]AdapterDesc, encodeTestParams) (int, int32) {
	return 0, -1
}

func (unavailableEncodeCalls) support(int32) int32 {
	return -1
}

type unavailableDecodeCalls struct{ driver Driver }

func (unavailableDecodeCalls) newDecoder(*decoderParams) (uintptr, error) {
	return 0, ErrDriverUnavailable
}

func (unavailableDecodeCalls) decode(uintptr, []byte, uintptr, sinkKind) int32 {
	return -1
}

func (unavailableDecodeCalls) destroyDecoder(uintptr) int32 {
	return -1
}

func (unavailableDecodeCalls) testDecode([]AdapterDesc, DeviceAPI, DataFormat, []byte) (int, int32) {
	return 0, -1
}

func (unavailableDecodeCalls) support(int32) int32 {
	return -1
}

func nativeTable(d Driver) (encodeCalls, decodeCalls) {
	return unavailableEncodeCalls{driver: d}, unavailableDecodeCalls{driver: d}
}
