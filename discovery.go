package hwcodec

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Registry caches probe results for the life of the process. Decoder
// discovery runs once. Encoder discovery depends on the requested frame
// shape, so the registry remembers the result for the last context only.
type Registry struct {
	prober *Prober

	decodersOnce sync.Once
	decoders     []CodecInfo

	mu       sync.Mutex
	encKey   EncodeContext
	encValid bool
	encoders []CodecInfo

	probes atomic.Int64
}

// NewRegistry returns an empty registry probing with opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{prober: NewProber(opts)}
}

// DefaultRegistry returns the process-wide registry, configured from the
// HWCODEC_* environment on first use.
var DefaultRegistry = sync.OnceValue(func() *Registry {
	cfg := envConfig()
	SetLogLevel(cfg.LogLevel)
	manifest, err := cfg.LoadManifest()
	if err != nil {
		newLogger(scopeRoot).Warnf("capability manifest ignored: %v", err)
	}
	return NewRegistry(Options{
		Manifest:         manifest,
		Workers:          cfg.ProbeWorkers,
		SoftwareEncoders: cfg.SoftwareEncoders,
	})
})

// AvailableDecoders returns the decoders usable on this machine. The first
// call probes; later calls return the same result.
func (r *Registry) AvailableDecoders() []CodecInfo {
	r.decodersOnce.Do(func() {
		r.probes.Add(1)
		r.decoders = r.prober.Decoders()
	})
	return slices.Clone(r.decoders)
}

// AvailableEncoders returns the encoders usable for frames shaped like ctx.
// A context equal to the previous one, ignoring Device, is served from the
// cache; any other context probes again and replaces the cached entry.
//
// Two concurrent callers that miss at the same time both probe; the last to
// finish wins the cache slot.
func (r *Registry) AvailableEncoders(ctx EncodeContext) []CodecInfo {
	key := ctx.Key()
	r.mu.Lock()
	if r.encValid && r.encKey == key {
		cached := slices.Clone(r.encoders)
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	r.probes.Add(1)
	found := r.prober.Encoders(ctx)

	r.mu.Lock()
	r.encKey, r.encValid, r.encoders = key, true, found
	r.mu.Unlock()
	return slices.Clone(found)
}

// ProbeCount returns how many probing passes the registry has run.
func (r *Registry) ProbeCount() int64 {
	return r.probes.Load()
}

// Manifest returns the manifest describing the decoders and the encoders
// usable for ctx.
func (r *Registry) Manifest(ctx EncodeContext) *Manifest {
	return ManifestFromInfos(r.AvailableEncoders(ctx), r.AvailableDecoders())
}

// AvailableEncoders probes the default registry, see
// Registry.AvailableEncoders.
func AvailableEncoders(ctx EncodeContext) []CodecInfo {
	return DefaultRegistry().AvailableEncoders(ctx)
}

// AvailableDecoders probes the default registry, see
// Registry.AvailableDecoders.
func AvailableDecoders() []CodecInfo {
	return DefaultRegistry().AvailableDecoders()
}

// BestEncoders returns the highest priority encoder per format for ctx.
func BestEncoders(ctx EncodeContext) CodecInfos {
	return Prioritized(AvailableEncoders(ctx))
}

// BestDecoders returns the highest priority decoder per format.
func BestDecoders() CodecInfos {
	return Prioritized(AvailableDecoders())
}
