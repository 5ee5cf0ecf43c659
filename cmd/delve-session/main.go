// delve-session debugs a Go program through a headless Delve server, with
// client-side conditional breakpoints and in-place restart.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "delve-session: %v\n", err)
		os.Exit(1)
	}
}
