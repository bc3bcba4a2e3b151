// Package main is the entry point for the warts capture decoder.
package main

import (
	"os"

	"firestige.xyz/warts/cmd"
)

func main() {
	// cobra has already printed the error
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
