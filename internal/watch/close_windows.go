//go:build windows

package watch

func closeFD(fd int) {}
