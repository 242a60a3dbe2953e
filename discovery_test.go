package hwcodec

import (
	"reflect"
	"sync"
	"testing"
)

func testRegistry(t *testing.T) (*Registry, *fakeBackend) {
	t.Helper()
	fake := installFake(t, newFakeBackend(), DriverFFmpeg, DriverAMF, DriverNV, DriverVPL)
	return NewRegistry(testOptions("linux")), fake
}

func TestRegistry_DecodersProbeOnce(t *testing.T) {
	r, fake := testRegistry(t)

	first := r.AvailableDecoders()
	created, _ := fake.counts()
	second := r.AvailableDecoders()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second call = %v, want %v", second, first)
	}
	if r.ProbeCount() != 1 {
		t.Errorf("ProbeCount = %d, want 1", r.ProbeCount())
	}
	if after, _ := fake.counts(); after != created {
		t.Errorf("cached call opened %d sessions", after-created)
	}
}

func TestRegistry_DecodersConcurrent(t *testing.T) {
	r, _ := testRegistry(t)

	var wg sync.WaitGroup
	results := make([][]CodecInfo, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.AvailableDecoders()
		}()
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if !reflect.DeepEqual(results[i], results[0]) {
			t.Errorf("caller %d saw %v, want %v", i, results[i], results[0])
		}
	}
	if r.ProbeCount() != 1 {
		t.Errorf("ProbeCount = %d, want 1", r.ProbeCount())
	}
}

func TestRegistry_EncoderCache(t *testing.T) {
	a := DefaultEncodeContext(H264, 64, 64)
	b := a
	b.Height = 48
	device := a
	device.Device = 0xD3D

	tests := []struct {
		name   string
		ctxs   []EncodeContext
		probes int64
	}{
		{"same context", []EncodeContext{a, a}, 1},
		{"alternating contexts", []EncodeContext{a, b, a}, 3},
		{"device ignored", []EncodeContext{a, device}, 1},
		{"changed bitrate", []EncodeContext{a, withKbps(a, 500)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := testRegistry(t)
			for _, ctx := range tt.ctxs {
				r.AvailableEncoders(ctx)
			}
			if got := r.ProbeCount(); got != tt.probes {
				t.Errorf("ProbeCount = %d, want %d", got, tt.probes)
			}
		})
	}
}

func withKbps(ctx EncodeContext, kbps int) EncodeContext {
	ctx.Kbps = kbps
	return ctx
}

func TestRegistry_ResultsAreCopies(t *testing.T) {
	r, _ := testRegistry(t)
	ctx := DefaultEncodeContext(H264, 64, 64)

	enc := r.AvailableEncoders(ctx)
	if len(enc) == 0 {
		t.Fatal("no encoders found")
	}
	enc[0].Name = "changed"
	if again := r.AvailableEncoders(ctx); again[0].Name == "changed" {
		t.Error("cached encoders alias a returned slice")
	}

	dec := r.AvailableDecoders()
	dec[0].Name = "changed"
	if again := r.AvailableDecoders(); again[0].Name == "changed" {
		t.Error("cached decoders alias a returned slice")
	}
}

func TestRegistry_Manifest(t *testing.T) {
	r, _ := testRegistry(t)
	m := r.Manifest(DefaultEncodeContext(H264, 64, 64))

	for _, e := range []ManifestEntry{{DriverAMF, H264}, {DriverNV, H264}, {DriverVPL, H265}} {
		if !m.Contains(true, e.Driver, e.Format) {
			t.Errorf("manifest lacks encoder %s/%s: %+v", e.Driver, e.Format, m.Encode)
		}
	}
	if !m.Contains(false, DriverAMF, H264) {
		t.Errorf("manifest lacks the AMF H264 decoder: %+v", m.Decode)
	}
	if m.Contains(false, DriverFFmpeg, H264) {
		t.Error("software decoders must not be recorded")
	}
	if r.ProbeCount() != 2 {
		t.Errorf("ProbeCount = %d, want one encoder and one decoder pass", r.ProbeCount())
	}
}

func TestRegistry_ManifestRestrictsProbing(t *testing.T) {
	fake := installFake(t, newFakeBackend(), DriverFFmpeg, DriverAMF, DriverNV, DriverVPL)

	opts := testOptions("linux")
	opts.Manifest = &Manifest{Encode: []ManifestEntry{{Driver: DriverAMF, Format: H264}}}
	got := NewRegistry(opts).AvailableEncoders(DefaultEncodeContext(H264, 64, 64))

	for _, info := range got {
		if d, ok := manifestDriver(info); ok && (d != DriverAMF || info.Format != H264) {
			t.Errorf("%s passed a manifest that excludes it", info)
		}
	}
	for _, name := range fake.openedNames() {
		if name == "h264_nvenc" || name == "hevc_qsv" {
			t.Errorf("%s was tried although the manifest excludes it", name)
		}
	}
}
