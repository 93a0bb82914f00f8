package main

import "github.com/kris-hansen/personaflow/cmd"

func main() {
	cmd.Execute()
}
