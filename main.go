package main

import "github.com/RyanBlaney/sonido-tonal/cmd"

func main() {
	cmd.Execute()
}
