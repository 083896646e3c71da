//go:build avr && atmega2560

package main

import (
	"runtime/volatile"
	"unsafe"
)

// volatileBus maps RegisterBus addresses straight onto the AVR data space
type volatileBus struct{}

func reg8(addr uint16) *volatile.Register8 {
	return (*volatile.Register8)(unsafe.Pointer(uintptr(addr)))
}

func (volatileBus) Load8(addr uint16) uint8 {
	return reg8(addr).Get()
}

func (volatileBus) Store8(addr uint16, v uint8) {
	reg8(addr).Set(v)
}
