package main

import "github.com/coreagent/core/cmd"

func main() {
	cmd.Execute()
}
