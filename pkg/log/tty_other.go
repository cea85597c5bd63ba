//go:build !linux && !darwin

package log

import "os"

func isTerminal(f *os.File) bool { return false }
