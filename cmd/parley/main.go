package main

import "github.com/parley-chat/parley-go/cmd/parley/cmd"

func main() {
	cmd.Execute()
}
