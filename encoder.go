package hwcodec

import (
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"github.com/pion/logging"
)

// EncodeContext configures an encoder session.
type EncodeContext struct {
	Name   string     // Codec name (e.g. "h264_nvenc", "nv_h264")
	MCName string     // Secondary codec name used by some FFmpeg wrappers
	Driver Driver     // Call table the codec is reached through
	API    DeviceAPI  // GPU API for VRAM codecs, APINone otherwise
	Format DataFormat // Output bitstream format

	Width       int         // Frame width
	Height      int         // Frame height
	PixelFormat PixelFormat // Input pixel format
	Align       int         // Stride alignment of input planes in bytes
	Kbps        int         // Target bitrate in kilobits per second
	FPS         int         // Target framerate
	GOP         int         // Keyframe interval in frames
	Quality     Quality     // Speed/quality preset
	RateControl RateControl // Rate control mode
	Threads     int         // Encoder threads (0 = auto)
	LUID        int64       // Adapter to open for VRAM codecs

	// Device is a native device handle shared with the caller. It does not
	// take part in equality, see Key.
	Device uintptr
}

// DefaultEncodeContext returns a default configuration for format.
func DefaultEncodeContext(format DataFormat, width, height int) EncodeContext {
	return EncodeContext{
		Driver:      DriverFFmpeg,
		Format:      format,
		Width:       width,
		Height:      height,
		PixelFormat: PixelFormatNV12,
		Align:       0,
		Kbps:        2000,
		FPS:         30,
		GOP:         0xFFFF, // Keyframes on demand only
		Quality:     QualityBalanced,
		RateControl: RateControlCBR,
		Threads:     1,
	}
}

// Key returns the identity used to compare encode contexts: every field
// except Device.
func (c EncodeContext) Key() EncodeContext {
	c.Device = 0
	return c
}

// Encoder is a live encoder session owning one native instance.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	ctx    EncodeContext
	calls  encodeCalls
	handle uintptr
	sink   *packetSink
	sinkID uintptr
	log    logging.LeveledLogger
	start  time.Time
	closed bool

	linesize []int
	offset   []int
	length   int
}

// NewEncoder creates an encoder session for ctx.
func NewEncoder(ctx EncodeContext) (*Encoder, error) {
	return newEncoder(ctx, newLogger(scopeSession), envConfig().NVENCGPU)
}

func newEncoder(ctx EncodeContext, log logging.LeveledLogger, gpu int) (*Encoder, error) {
	calls, err := encodeTable(ctx.Driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, ctx.Name, err)
	}

	name := cString(ctx.Name)
	mcName := cString(ctx.MCName)
	params := &encoderParams{
		Name:        bytesAddr(name),
		MCName:      bytesAddr(mcName),
		Device:      ctx.Device,
		LUID:        ctx.LUID,
		API:         int32(ctx.API),
		Format:      int32(ctx.Format),
		Width:       int32(ctx.Width),
		Height:      int32(ctx.Height),
		PixelFormat: int32(ctx.PixelFormat),
		Align:       int32(ctx.Align),
		Kbps:        int32(ctx.Kbps),
		FPS:         int32(ctx.FPS),
		GOP:         int32(ctx.GOP),
		Quality:     int32(ctx.Quality),
		RateControl: int32(ctx.RateControl),
		Threads:     int32(ctx.Threads),
		GPU:         int32(gpu),
	}
	handle, err := calls.newEncoder(params)
	runtime.KeepAlive(name)
	runtime.KeepAlive(mcName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateFailed, ctx.Name, err)
	}
	if handle == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCreateFailed, ctx.Name)
	}

	e := &Encoder{
		ctx:    ctx,
		calls:  calls,
		handle: handle,
		sink:   &packetSink{},
		log:    log,
		start:  time.Now(),
	}
	e.sinkID = sinks.register(e.sink)
	e.linesize, e.offset, e.length = planeLayout(params)
	return e, nil
}

func planeLayout(p *encoderParams) (linesize, offset []int, length int) {
	for i := 0; i < maxDataPlanes && p.Linesize[i] > 0; i++ {
		linesize = append(linesize, int(p.Linesize[i]))
		offset = append(offset, int(p.Offset[i]))
	}
	return linesize, offset, int(p.Length)
}

// Encode submits one raw picture laid out as described by Linesize and
// Offset, and returns the compressed units it produced.
func (e *Encoder) Encode(data []byte) ([]EncodeFrame, error) {
	if e.closed {
		return nil, ErrClosed
	}
	e.sink.frames = nil
	ms := time.Since(e.start).Milliseconds()
	if ret := e.calls.encode(e.handle, data, e.sinkID, ms); ret != 0 {
		e.log.Errorf("%s: encode failed with status %d", e.ctx.Name, ret)
		return nil, &StatusError{Op: "encode", Code: ret}
	}
	return e.sink.frames, nil
}

// SetBitrate changes the target bitrate.
func (e *Encoder) SetBitrate(kbps int) error {
	if e.closed {
		return ErrClosed
	}
	if ret := e.calls.setBitrate(e.handle, int32(kbps)); ret != 0 {
		e.log.Errorf("%s: set bitrate %d failed with status %d", e.ctx.Name, kbps, ret)
		return &StatusError{Op: "set_bitrate", Code: ret}
	}
	e.ctx.Kbps = kbps
	return nil
}

// SetFramerate changes the target framerate.
func (e *Encoder) SetFramerate(fps int) error {
	if e.closed {
		return ErrClosed
	}
	if ret := e.calls.setFramerate(e.handle, int32(fps)); ret != 0 {
		e.log.Errorf("%s: set framerate %d failed with status %d", e.ctx.Name, fps, ret)
		return &StatusError{Op: "set_framerate", Code: ret}
	}
	e.ctx.FPS = fps
	return nil
}

// Context returns the configuration the session was created with, updated
// by SetBitrate and SetFramerate.
func (e *Encoder) Context() EncodeContext { return e.ctx }

// Linesize returns the input plane strides the native encoder expects.
func (e *Encoder) Linesize() []int { return e.linesize }

// Offset returns the byte offset of each input plane.
func (e *Encoder) Offset() []int { return e.offset }

// Length returns the input buffer length the native encoder expects.
func (e *Encoder) Length() int { return e.length }

// Close destroys the native instance. Further calls are no-ops.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	sinks.release(e.sinkID)
	if ret := e.calls.destroyEncoder(e.handle); ret != 0 {
		e.log.Warnf("%s: destroy failed with status %d", e.ctx.Name, ret)
	}
	e.handle = 0
	return nil
}

// cString returns s as a NUL-terminated byte slice, or nil for "".
func cString(s string) []byte {
	if s == "" {
		return nil
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

func bytesAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
