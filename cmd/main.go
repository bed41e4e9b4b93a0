// nguctl - NGU Idle listener controller
// Drives the input listener injected into the game over its command pipe
package main

import "nguctl/internal/cli"

func main() {
	cli.Execute()
}
