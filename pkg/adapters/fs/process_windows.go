//go:build windows

package fs

import "os"

// processAlive reports whether pid names a running process.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	p.Release()
	return true
}
