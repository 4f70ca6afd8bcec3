package cmd

import (
	"fmt"
	"os"
)

// used to patch over calls to os.Exit() during test
var osExit = os.Exit

func wrapFatalWithCodef(code int, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	osExit(code)
}
