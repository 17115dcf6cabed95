// Command wardwatch is a terminal dashboard for nurses: log in, see assigned
// patients with their latest vitals, and manage the nurse profile.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
