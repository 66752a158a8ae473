package main

import (
	"github.com/kqinotify/kqinotify/cmd/kqinotifyctl"
)

func main() {
	kqinotifyctl.Execute()
}
