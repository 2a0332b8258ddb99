// Command progress serves live progress events and demonstrates the progress
// instrumentation.
package main

import "github.com/tebeka/atexit"

func main() {
	Execute()
	atexit.Exit(0)
}
