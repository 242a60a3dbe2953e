package hwcodec

import (
	"fmt"
	"unsafe"

	"github.com/pion/logging"
)

// Output sinks. A session registers one in the sink table and passes the
// handle to native calls as the callback context; the callbacks below
// append to it before the native call returns.

type packetSink struct {
	frames []EncodeFrame
}

type planeSink struct {
	frames []DecodeFrame
	log    logging.LeveledLogger
}

type textureSink struct {
	frames []TextureFrame
}

// onEncodedUnit receives one compressed unit from a native encode call.
func onEncodedUnit(data uintptr, size int32, pts int64, key int32, obj uintptr) {
	sink, ok := sinks.lookup(obj).(*packetSink)
	if !ok {
		return
	}
	sink.frames = append(sink.frames, EncodeFrame{
		Data: copyBytes(data, int(size)),
		PTS:  pts,
		Key:  key != 0,
	})
}

// onDecodedFrame receives one decoded picture from a native decode call.
// linesizes and datas point at native arrays of maxDataPlanes entries.
//
//go:nocheckptr
func onDecodedFrame(obj uintptr, width, height, pixfmt int32, linesizes, datas uintptr, key int32) {
	sink, ok := sinks.lookup(obj).(*planeSink)
	if !ok {
		return
	}
	var linesize [maxDataPlanes]int32
	var data [maxDataPlanes]uintptr
	if linesizes != 0 {
		linesize = *(*[maxDataPlanes]int32)(unsafe.Pointer(linesizes))
	}
	if datas != 0 {
		data = *(*[maxDataPlanes]uintptr)(unsafe.Pointer(datas))
	}
	frame, err := marshalDecodeFrame(int(width), int(height), PixelFormat(pixfmt), linesize[:], data[:], key != 0)
	if err != nil {
		sink.log.Errorf("dropping decoded frame: %v", err)
		return
	}
	sink.frames = append(sink.frames, frame)
}

// onTexture receives one GPU-resident picture from a native decode call.
func onTexture(texture, obj uintptr) {
	sink, ok := sinks.lookup(obj).(*textureSink)
	if !ok {
		return
	}
	sink.frames = append(sink.frames, TextureFrame{Texture: texture})
}

// marshalDecodeFrame copies the planes of a native picture into Go memory.
// Plane sizes follow the 4:2:0 layouts: the luma plane has height rows and
// every chroma plane height/2 rows of its own stride.
func marshalDecodeFrame(width, height int, pixfmt PixelFormat, linesize []int32, data []uintptr, key bool) (DecodeFrame, error) {
	if width <= 0 || height <= 0 {
		return DecodeFrame{}, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	planes := pixfmt.PlaneCount()
	if planes == 0 {
		return DecodeFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, pixfmt)
	}
	if len(linesize) < planes || len(data) < planes {
		return DecodeFrame{}, fmt.Errorf("%w: %d planes reported, %s needs %d", ErrInvalidGeometry, min(len(linesize), len(data)), pixfmt, planes)
	}

	frame := DecodeFrame{
		PixelFormat: pixfmt,
		Width:       width,
		Height:      height,
		Data:        make([][]byte, planes),
		Linesize:    make([]int, planes),
		Key:         key,
	}
	for i := 0; i < planes; i++ {
		stride := int(linesize[i])
		if stride <= 0 || data[i] == 0 {
			return DecodeFrame{}, fmt.Errorf("%w: plane %d stride %d", ErrInvalidGeometry, i, stride)
		}
		rows := height
		if i > 0 {
			rows = height / 2
		}
		frame.Linesize[i] = stride
		frame.Data[i] = copyBytes(data[i], stride*rows)
	}
	return frame, nil
}

// copyBytes copies n bytes of native memory at ptr into a new slice.
// In-process drivers may hand out Go memory, which checkptr cannot tie to
// an original pointer.
//
//go:nocheckptr
func copyBytes(ptr uintptr, n int) []byte {
	if ptr == 0 || n <= 0 {
		return []byte{}
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n))
	return out
}
