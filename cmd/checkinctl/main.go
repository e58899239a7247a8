// Command checkinctl generates and verifies check-in proof artifacts offline.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"
)

func main() {
	root := newRootCmd(os.Stdin, os.Stdout, time.Now)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errRejected) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "checkinctl:", err)
		os.Exit(1)
	}
}
