package main

import "github.com/spindleci/spindle/cmd"

func main() {
	cmd.Execute()
}
