package build

import (
	"fmt"
	"os"
	"runtime/debug"
)

// DEBUG toggles whether Critical/Severe panic instead of merely logging to
// stderr. It defaults to false, and nothing in this repository sets it.
var DEBUG = false

// Critical should be called when a sanity check has failed that indicates a
// bug in the engine itself (a broken invariant from §3/§8 of the
// specification), as opposed to an environment failure like a bad disk.
func Critical(v ...interface{}) {
	s := "Critical error: " + fmt.Sprintln(v...)
	debug.PrintStack()
	os.Stderr.WriteString(s)
	if DEBUG {
		panic(s)
	}
}

// Severe is called for significant but non-corrupting problems such as disk
// failures. Severe never panics unless DEBUG is set.
func Severe(v ...interface{}) {
	s := "Severe error: " + fmt.Sprintln(v...)
	os.Stderr.WriteString(s)
	if DEBUG {
		panic(s)
	}
}
