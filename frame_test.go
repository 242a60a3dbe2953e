package hwcodec

import (
	"errors"
	"reflect"
	"testing"
)

func TestPixelFormat_PlaneCount(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{PixelFormatYUV420P, 3},
		{PixelFormatNV12, 2},
		{PixelFormat(5), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.PlaneCount(); got != tt.want {
				t.Errorf("PlaneCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLinesizeOffsetLength(t *testing.T) {
	tests := []struct {
		name     string
		pixfmt   PixelFormat
		w, h     int
		align    int
		linesize []int
		offset   []int
		length   int
	}{
		{"nv12", PixelFormatNV12, 64, 64, 0, []int{64, 64}, []int{0, 4096}, 4096 + 2048},
		{"nv12 odd", PixelFormatNV12, 5, 3, 1, []int{5, 6}, []int{0, 15}, 15 + 12},
		{"nv12 aligned", PixelFormatNV12, 100, 10, 32, []int{128, 128}, []int{0, 1280}, 1280 + 640},
		{"yuv420p", PixelFormatYUV420P, 64, 48, 1, []int{64, 32, 32}, []int{0, 3072, 3840}, 3072 + 768 + 768},
		{"yuv420p aligned", PixelFormatYUV420P, 20, 4, 16, []int{32, 16, 16}, []int{0, 128, 160}, 128 + 32 + 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			linesize, offset, length, err := LinesizeOffsetLength(tt.pixfmt, tt.w, tt.h, tt.align)
			if err != nil {
				t.Fatalf("LinesizeOffsetLength: %v", err)
			}
			if !reflect.DeepEqual(linesize, tt.linesize) {
				t.Errorf("linesize = %v, want %v", linesize, tt.linesize)
			}
			if !reflect.DeepEqual(offset, tt.offset) {
				t.Errorf("offset = %v, want %v", offset, tt.offset)
			}
			if length != tt.length {
				t.Errorf("length = %d, want %d", length, tt.length)
			}
		})
	}
}

func TestLinesizeOffsetLength_Errors(t *testing.T) {
	if _, _, _, err := LinesizeOffsetLength(PixelFormatNV12, 0, 64, 1); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("zero width: err = %v, want ErrInvalidGeometry", err)
	}
	if _, _, _, err := LinesizeOffsetLength(PixelFormatNV12, 64, -2, 1); !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("negative height: err = %v, want ErrInvalidGeometry", err)
	}
	if _, _, _, err := LinesizeOffsetLength(PixelFormat(77), 64, 64, 1); !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Errorf("unknown format: err = %v, want ErrUnsupportedPixelFormat", err)
	}
}

func TestDecodeFrame_Clone(t *testing.T) {
	frame := &DecodeFrame{
		PixelFormat: PixelFormatNV12,
		Width:       4,
		Height:      2,
		Data:        [][]byte{{1, 2, 3, 4, 5, 6, 7, 8}, {9, 10, 11, 12}},
		Linesize:    []int{4, 4},
		Key:         true,
	}

	clone := frame.Clone()
	if !reflect.DeepEqual(clone, frame) {
		t.Fatalf("clone differs: %+v", clone)
	}

	clone.Data[0][0] = 99
	clone.Linesize[1] = 8
	if frame.Data[0][0] != 1 || frame.Linesize[1] != 4 {
		t.Error("modifying clone affected original")
	}
}

func TestEncodeFrame_Clone(t *testing.T) {
	frame := &EncodeFrame{Data: []byte{1, 2, 3}, PTS: 33, Key: true}

	clone := frame.Clone()
	if clone.PTS != 33 || !clone.Key || !reflect.DeepEqual(clone.Data, frame.Data) {
		t.Fatalf("clone = %+v", clone)
	}
	clone.Data[0] = 99
	if frame.Data[0] != 1 {
		t.Error("modifying clone affected original")
	}
}
