package main

import "github.com/agentic-research/resfs/cmd"

func main() {
	cmd.Execute()
}
