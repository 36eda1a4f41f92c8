package main

import "github.com/fakeyudi/statemon/cmd"

func main() {
	cmd.Execute()
}
