//go:build js && wasm

package gldevice

import "syscall/js"

func uint8Array(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	if len(data) == 0 {
		return arr
	}
	js.CopyBytesToJS(arr, data)
	return arr
}
