// ABOUTME: Entry point for the standalone VISUAL LOCK gateway
// ABOUTME: Relays SoundCloud API requests and advertises itself over mDNS
package main

import (
	"fmt"
	"os"

	"github.com/visual-lock/visuallock/internal/cli"
)

func main() {
	cmd := cli.NewGatewayCmd()
	cmd.Use = "visuallock-gateway"
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
