package main

import "github.com/kestrelchat/kestrel/cmd/kestrel-cli/cmd"

func main() {
	cmd.Execute()
}
