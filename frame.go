// Frame types exchanged with codec sessions.
package hwcodec

import "fmt"

// PixelFormat is a raw picture layout. Values match AVPixelFormat.
type PixelFormat int32

const (
	PixelFormatYUV420P PixelFormat = 0  // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12    PixelFormat = 23 // YUV 4:2:0 semi-planar (Y + interleaved UV)
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV420P:
		return "YUV420P"
	case PixelFormatNV12:
		return "NV12"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int32(p))
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatYUV420P:
		return 3 // Y, U, V
	case PixelFormatNV12:
		return 2 // Y, UV
	default:
		return 0
	}
}

// DecodeFrame is a decoded picture whose planes are owned by the caller.
type DecodeFrame struct {
	PixelFormat PixelFormat
	Width       int
	Height      int
	Data        [][]byte // Plane data, row stride Linesize[i]
	Linesize    []int    // Stride for each plane in bytes
	Key         bool
}

// Clone creates a deep copy of the decoded frame.
func (f *DecodeFrame) Clone() *DecodeFrame {
	clone := &DecodeFrame{
		PixelFormat: f.PixelFormat,
		Width:       f.Width,
		Height:      f.Height,
		Data:        make([][]byte, len(f.Data)),
		Linesize:    make([]int, len(f.Linesize)),
		Key:         f.Key,
	}
	copy(clone.Linesize, f.Linesize)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = make([]byte, len(plane))
			copy(clone.Data[i], plane)
		}
	}
	return clone
}

// EncodeFrame is one compressed unit produced by an encoder.
type EncodeFrame struct {
	Data []byte
	PTS  int64 // Presentation timestamp in milliseconds
	Key  bool
}

// Clone creates a deep copy of the encoded frame.
func (f *EncodeFrame) Clone() *EncodeFrame {
	clone := &EncodeFrame{PTS: f.PTS, Key: f.Key}
	if f.Data != nil {
		clone.Data = make([]byte, len(f.Data))
		copy(clone.Data, f.Data)
	}
	return clone
}

// TextureFrame references a decoded picture that stays in GPU memory.
// Texture is an opaque native handle valid until the next Decode call on
// the session that produced it.
type TextureFrame struct {
	Texture uintptr
}

// LinesizeOffsetLength returns the per-plane strides, the byte offset of
// each plane and the total length of a tightly packed buffer holding a
// width x height picture with strides aligned to align bytes.
func LinesizeOffsetLength(pixfmt PixelFormat, width, height, align int) (linesize, offset []int, length int, err error) {
	if width <= 0 || height <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	if align <= 0 {
		align = 1
	}
	chromaHeight := (height + 1) / 2
	switch pixfmt {
	case PixelFormatYUV420P:
		linesize = []int{alignUp(width, align), alignUp((width+1)/2, align), alignUp((width+1)/2, align)}
	case PixelFormatNV12:
		linesize = []int{alignUp(width, align), alignUp(width+width%2, align)}
	default:
		return nil, nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedPixelFormat, pixfmt)
	}
	offset = make([]int, len(linesize))
	for i, stride := range linesize {
		offset[i] = length
		if i == 0 {
			length += stride * height
		} else {
			length += stride * chromaHeight
		}
	}
	return linesize, offset, length, nil
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
