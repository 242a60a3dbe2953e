package hwcodec

import (
	"fmt"
	"runtime"

	"github.com/pion/logging"
)

// DecodeContext configures a decoder session.
type DecodeContext struct {
	Name     string       // Codec name (e.g. "h264", "hevc", "nv_h264")
	Driver   Driver       // Call table the codec is reached through
	API      DeviceAPI    // GPU API for VRAM codecs, APINone otherwise
	Format   DataFormat   // Input bitstream format
	HWDevice HWDeviceType // FFmpeg hardware device, HWDeviceNone for software
	Threads  int          // Decoder threads (0 = auto)
	LUID     int64        // Adapter to open for VRAM codecs
	Device   uintptr      // Native device handle shared with the caller

	// OutputSharedHandle asks VRAM decoders for shareable textures.
	OutputSharedHandle bool
}

// decoderCore is the part shared by the plane and texture decoders.
type decoderCore struct {
	ctx    DecodeContext
	calls  decodeCalls
	handle uintptr
	sinkID uintptr
	log    logging.LeveledLogger
	closed bool
}

func openDecoder(ctx DecodeContext, sink any, log logging.LeveledLogger) (decoderCore, error) {
	calls, err := decodeTable(ctx.Driver)
	if err != nil {
		return decoderCore{}, fmt.Errorf("%w: %s: %w", ErrCreateFailed, ctx.Name, err)
	}

	name := cString(ctx.Name)
	params := &decoderParams{
		Name:     bytesAddr(name),
		Device:   ctx.Device,
		LUID:     ctx.LUID,
		API:      int32(ctx.API),
		Format:   int32(ctx.Format),
		HWDevice: int32(ctx.HWDevice),
		Threads:  int32(ctx.Threads),
	}
	if ctx.OutputSharedHandle {
		params.OutputSharedHandle = 1
	}
	handle, err := calls.newDecoder(params)
	runtime.KeepAlive(name)
	if err != nil {
		return decoderCore{}, fmt.Errorf("%w: %s: %w", ErrCreateFailed, ctx.Name, err)
	}
	if handle == 0 {
		return decoderCore{}, fmt.Errorf("%w: %s", ErrCreateFailed, ctx.Name)
	}
	return decoderCore{
		ctx:    ctx,
		calls:  calls,
		handle: handle,
		sinkID: sinks.register(sink),
		log:    log,
	}, nil
}

// run submits data and reports whether the native status means failure.
func (d *decoderCore) run(data []byte, kind sinkKind) error {
	ret := d.calls.decode(d.handle, data, d.sinkID, kind)
	failed := ret != 0
	if kind == sinkPlanes {
		// Host-memory decoders report "no picture yet" with positive codes.
		failed = ret < 0
	}
	if failed {
		d.log.Errorf("%s: decode failed with status %d", d.ctx.Name, ret)
		return &StatusError{Op: "decode", Code: ret}
	}
	return nil
}

func (d *decoderCore) close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	sinks.release(d.sinkID)
	if ret := d.calls.destroyDecoder(d.handle); ret != 0 {
		d.log.Warnf("%s: destroy failed with status %d", d.ctx.Name, ret)
	}
	d.handle = 0
	return nil
}

// Decoder is a live decoder session producing frames in host memory.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	decoderCore
	sink *planeSink
}

// NewDecoder creates a decoder session for ctx.
func NewDecoder(ctx DecodeContext) (*Decoder, error) {
	return newDecoder(ctx, newLogger(scopeSession))
}

func newDecoder(ctx DecodeContext, log logging.LeveledLogger) (*Decoder, error) {
	sink := &planeSink{log: log}
	core, err := openDecoder(ctx, sink, log)
	if err != nil {
		return nil, err
	}
	return &Decoder{decoderCore: core, sink: sink}, nil
}

// Decode submits one compressed unit and returns the pictures it produced.
// The frames own their plane memory.
func (d *Decoder) Decode(data []byte) ([]DecodeFrame, error) {
	if d.closed {
		return nil, ErrClosed
	}
	d.sink.frames = nil
	if err := d.run(data, sinkPlanes); err != nil {
		return nil, err
	}
	return d.sink.frames, nil
}

// Context returns the configuration the session was created with.
func (d *Decoder) Context() DecodeContext { return d.ctx }

// Close destroys the native instance. Further calls are no-ops.
func (d *Decoder) Close() error { return d.close() }

// TextureDecoder is a live decoder session whose frames stay in GPU memory.
// A TextureDecoder is not safe for concurrent use.
type TextureDecoder struct {
	decoderCore
	sink *textureSink
}

// NewTextureDecoder creates a VRAM decoder session for ctx.
func NewTextureDecoder(ctx DecodeContext) (*TextureDecoder, error) {
	return newTextureDecoder(ctx, newLogger(scopeSession))
}

func newTextureDecoder(ctx DecodeContext, log logging.LeveledLogger) (*TextureDecoder, error) {
	sink := &textureSink{}
	core, err := openDecoder(ctx, sink, log)
	if err != nil {
		return nil, err
	}
	return &TextureDecoder{decoderCore: core, sink: sink}, nil
}

// Decode submits one compressed unit and returns the textures it produced.
func (d *TextureDecoder) Decode(data []byte) ([]TextureFrame, error) {
	if d.closed {
		return nil, ErrClosed
	}
	d.sink.frames = nil
	if err := d.run(data, sinkTexture); err != nil {
		return nil, err
	}
	return d.sink.frames, nil
}

// Context returns the configuration the session was created with.
func (d *TextureDecoder) Context() DecodeContext { return d.ctx }

// Close destroys the native instance. Further calls are no-ops.
func (d *TextureDecoder) Close() error { return d.close() }
