package main

import "github.com/bryanchriswhite/drawfilter/cmd/drawfilter/commands"

func main() {
	commands.Execute()
}
