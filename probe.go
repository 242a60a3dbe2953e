package hwcodec

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/sourcegraph/conc/pool"
)

// Options configures a Prober.
type Options struct {
	GOOS             string    // Candidate table to use, defaults to runtime.GOOS
	Manifest         *Manifest // Allow-list of known working drivers, nil allows all
	Workers          int       // Concurrent probe tasks, 0 runs every candidate at once
	SoftwareEncoders bool      // Append libx264/libx265 to encoder results

	Logger logging.LeveledLogger // Defaults to the hwcodec/probe scope

	present   func(d Driver, encode bool) bool
	cpuVendor func() string
	reference func(f DataFormat) []byte
}

// Prober finds the codecs that work on this machine by opening each
// candidate and pushing one unit of sample data through it.
type Prober struct {
	opts Options
	log  logging.LeveledLogger

	// gpuMu serializes candidates whose drivers cannot create GPU contexts
	// concurrently. Held for the create and process window only.
	gpuMu sync.Mutex
}

// NewProber returns a prober for the current host.
func NewProber(opts Options) *Prober {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.present == nil {
		opts.present = driverPresent
	}
	if opts.cpuVendor == nil {
		opts.cpuVendor = hostCPUVendor
	}
	if opts.reference == nil {
		opts.reference = ReferenceStream
	}
	log := opts.Logger
	if log == nil {
		log = newLogger(scopeProbe)
	}
	return &Prober{opts: opts, log: log}
}

// Encoders returns the encoders able to encode frames shaped like ctx.
// Name, Driver, API and LUID of ctx are ignored. Never fails; an empty
// result is valid.
func (p *Prober) Encoders(ctx EncodeContext) []CodecInfo {
	start := time.Now()
	cands := p.encoderCandidates(ctx)

	if ctx.Width <= 0 || ctx.Height <= 0 {
		p.log.Debugf("no encoder trials for %dx%d", ctx.Width, ctx.Height)
		cands = nil
	}

	// RAM trials need an input picture. VRAM candidates run the driver's
	// own test and do not.
	var yuv []byte
	if _, _, length, err := LinesizeOffsetLength(ctx.PixelFormat, ctx.Width, ctx.Height, ctx.Align); err != nil {
		if len(cands) > 0 {
			p.log.Debugf("RAM encoders skipped, no trial input: %v", err)
		}
		cands = slices.DeleteFunc(cands, func(c CodecInfo) bool { return !c.VRAM() })
	} else {
		yuv = make([]byte, length)
	}

	found := p.fanOut(cands, func(c CodecInfo) ([]CodecInfo, error) {
		if c.VRAM() {
			return p.testEncoder(c, ctx)
		}
		if err := p.trialEncode(c, ctx, yuv); err != nil {
			return nil, err
		}
		return []CodecInfo{c}, nil
	})

	found = applyQuirks(found, p.opts.cpuVendor())
	if p.opts.SoftwareEncoders {
		found = append(found, SoftwareEncoders()...)
	}
	p.log.Debugf("encoder probe: %d of %d candidates usable in %v", len(found), len(cands), time.Since(start))
	return found
}

// Decoders returns the decoders able to decode the reference streams,
// followed by the software decoders. Never fails.
func (p *Prober) Decoders() []CodecInfo {
	start := time.Now()
	var cands []CodecInfo
	for _, c := range p.decoderCandidates() {
		if len(p.opts.reference(c.Format)) == 0 {
			p.log.Debugf("%s: skipped, no %s reference stream", c, c.Format)
			continue
		}
		cands = append(cands, c)
	}

	found := p.fanOut(cands, func(c CodecInfo) ([]CodecInfo, error) {
		if c.VRAM() {
			return p.testDecoder(c)
		}
		if err := p.trialDecode(c); err != nil {
			return nil, err
		}
		return []CodecInfo{c}, nil
	})

	found = applyQuirks(found, p.opts.cpuVendor())
	found = append(found, SoftwareDecoders()...)
	p.log.Debugf("decoder probe: %d of %d candidates usable in %v", len(found)-len(SoftwareDecoders()), len(cands), time.Since(start))
	return found
}

// fanOut runs trial once per candidate, concurrently, and collects what the
// successful trials return. Failed candidates are dropped, never retried.
func (p *Prober) fanOut(cands []CodecInfo, trial func(CodecInfo) ([]CodecInfo, error)) []CodecInfo {
	if len(cands) == 0 {
		return nil
	}
	workers := len(cands)
	if p.opts.Workers > 0 && p.opts.Workers < workers {
		workers = p.opts.Workers
	}

	var (
		mu    sync.Mutex
		found []CodecInfo
	)
	tasks := pool.New().WithMaxGoroutines(workers).WithErrors()
	for _, c := range cands {
		tasks.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s: panic: %v", c, r)
				}
			}()
			if exclusive(c) {
				p.gpuMu.Lock()
				defer p.gpuMu.Unlock()
			}

			start := time.Now()
			infos, err := trial(c)
			if err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
			p.log.Debugf("%s: usable (%v)", c, time.Since(start))

			mu.Lock()
			found = append(found, infos...)
			mu.Unlock()
			return nil
		})
	}
	if err := tasks.Wait(); err != nil {
		p.log.Debugf("dropped candidates: %v", err)
	}
	return found
}

func (p *Prober) trialEncode(c CodecInfo, ctx EncodeContext, yuv []byte) error {
	enc, err := newEncoder(c.EncodeContext(ctx), silentLogger(), -1)
	if err != nil {
		return err
	}
	defer enc.Close()
	_, err = enc.Encode(yuv)
	return err
}

func (p *Prober) trialDecode(c CodecInfo) error {
	dec, err := newDecoder(c.DecodeContext(4), silentLogger())
	if err != nil {
		return err
	}
	defer dec.Close()
	_, err = dec.Decode(p.opts.reference(c.Format))
	return err
}

// testEncoder runs the driver's own encode test and returns one entry per
// adapter that passed it.
func (p *Prober) testEncoder(c CodecInfo, ctx EncodeContext) ([]CodecInfo, error) {
	calls, err := encodeTable(c.Driver)
	if err != nil {
		return nil, err
	}
	descs := make([]AdapterDesc, maxAdapters)
	n, ret := calls.testEncode(descs, encodeTestParams{
		API:    c.API,
		Format: c.Format,
		Width:  int32(ctx.Width),
		Height: int32(ctx.Height),
		Kbps:   int32(ctx.Kbps),
		FPS:    int32(ctx.FPS),
		GOP:    int32(ctx.GOP),
	})
	if ret != 0 {
		return nil, &StatusError{Op: "test_encode", Code: ret}
	}
	return perAdapter(c, descs[:n]), nil
}

// testDecoder runs the driver's own decode test against the reference
// stream and returns one entry per adapter that passed it.
func (p *Prober) testDecoder(c CodecInfo) ([]CodecInfo, error) {
	calls, err := decodeTable(c.Driver)
	if err != nil {
		return nil, err
	}
	descs := make([]AdapterDesc, maxAdapters)
	n, ret := calls.testDecode(descs, c.API, c.Format, p.opts.reference(c.Format))
	if ret != 0 {
		return nil, &StatusError{Op: "test_decode", Code: ret}
	}
	return perAdapter(c, descs[:n]), nil
}

func perAdapter(c CodecInfo, descs []AdapterDesc) []CodecInfo {
	out := make([]CodecInfo, 0, len(descs))
	for _, desc := range descs {
		info := c
		info.LUID = desc.LUID
		out = append(out, info)
	}
	return out
}
