package main

import "github.com/agentic-research/reform/cmd"

func main() {
	cmd.Execute()
}
