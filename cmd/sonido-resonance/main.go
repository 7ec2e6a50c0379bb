package main

import "github.com/RyanBlaney/sonido-resonance/internal/cli"

func main() {
	cli.Execute()
}
