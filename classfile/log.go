package classfile

import (
	"io/ioutil"
	"log"
	"os"
)

// PrintDebugInfo sends the package logger's output to stderr instead of
// discarding it. It is off by default and is read once, when the
// package initializes; setting it afterwards does not change where the
// logger writes. No code in this package writes to the logger.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "", log.Lshortfile)
}
