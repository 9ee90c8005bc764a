// Command prism encrypts datasets for their owners, authorizes buyers through
// proxy re-encryption, and embeds or detects ownership watermarks.
package main

import (
	"os"
)

func main() {
	// On failure cobra prints the error, so only the exit status is left.
	if newRootCmd().Execute() != nil {
		os.Exit(1)
	}
}
