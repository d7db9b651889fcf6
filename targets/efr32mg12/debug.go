//go:build efr32mg12

package main

import (
	"runtime/volatile"
	"unsafe"
)

// Debug output goes to ITM stimulus port 0 (SWO), leaving USART0 to the
// sample stream.
var (
	itmStim0     = reg(0xE0000000)
	itmStim0Byte = (*volatile.Register8)(unsafe.Pointer(uintptr(0xE0000000)))
	itmTER       = reg(0xE0000E00)

	debugEnabled bool
)

// InitDebug enables the stimulus port if a debugger set up the trace unit.
func InitDebug() {
	debugEnabled = demCR.HasBits(1<<24) && itmTER.HasBits(1)
}

func itmPutc(c byte) {
	for itmStim0.Get() == 0 {
	}
	itmStim0Byte.Set(c)
}

// DebugPrintln writes s and a line break to the trace port.
func DebugPrintln(s string) {
	if !debugEnabled {
		return
	}
	for i := 0; i < len(s); i++ {
		itmPutc(s[i])
	}
	itmPutc('\r')
	itmPutc('\n')
}
