package hwcodec

import "testing"

// BenchmarkSessionOverhead measures the Go side of a session call: table
// dispatch, sink lookup and output copying, with an in-process driver.
func BenchmarkSessionOverhead(b *testing.B) {
	fake := newFakeBackend()
	table := &fakeTable{backend: fake, driver: DriverFFmpeg}
	b.Cleanup(setTable(DriverFFmpeg, table, table))

	b.Run("CreateDestroy", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			enc, err := newEncoder(testEncodeContext(), silentLogger(), -1)
			if err != nil {
				b.Fatal(err)
			}
			enc.Close()
		}
	})

	b.Run("Encode", func(b *testing.B) {
		enc, err := newEncoder(testEncodeContext(), silentLogger(), -1)
		if err != nil {
			b.Fatal(err)
		}
		defer enc.Close()
		picture := make([]byte, enc.Length())

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := enc.Encode(picture); err != nil {
				b.Fatal(err)
			}
		}
	})

	// 1280x720 NV12 picture copied out of the callback on every call.
	b.Run("DecodePlanes", func(b *testing.B) {
		dec, err := NewDecoder(testDecodeContext())
		if err != nil {
			b.Fatal(err)
		}
		defer dec.Close()
		unit := unitFor(1280, 720)

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			frames, err := dec.Decode(unit)
			if err != nil || len(frames) != 1 {
				b.Fatalf("Decode = %d frames, %v", len(frames), err)
			}
		}
	})
}
