// ABOUTME: Entry point for the VISUAL LOCK visualizer
// ABOUTME: Hands off to the cobra command tree
package main

import "github.com/visual-lock/visuallock/internal/cli"

func main() {
	cli.Execute()
}
