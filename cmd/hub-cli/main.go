package main

import "sockethub/cmd/hub-cli/command"

func main() {
	command.Execute()
}
