// Package main is the entry point for the netanon capture anonymization toolkit.
package main

import (
	"os"

	"firestige.xyz/netanon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
