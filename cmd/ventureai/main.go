// Command ventureai drives the backend from a terminal: sessions, analyses,
// text extraction and warehouse maintenance against the configured AWS account.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
