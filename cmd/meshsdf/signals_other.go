//go:build !linux
// +build !linux

package main

import (
	"os"
)

func signals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
