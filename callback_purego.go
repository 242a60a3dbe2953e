//go:build darwin || linux

package hwcodec

import (
	"sync"

	"github.com/ebitengine/purego"
)

// Native callback trampolines. purego callbacks are never freed, so they are
// created once and shared by every session.
var (
	callbacksOnce   sync.Once
	encodeCallback  uintptr
	decodeCallback  uintptr
	textureCallback uintptr
)

func nativeCallbacks() (encode, decode, texture uintptr) {
	callbacksOnce.Do(func() {
		encodeCallback = purego.NewCallback(onEncodedUnit)
		decodeCallback = purego.NewCallback(onDecodedFrame)
		textureCallback = purego.NewCallback(onTexture)
	})
	return encodeCallback, decodeCallback, textureCallback
}
