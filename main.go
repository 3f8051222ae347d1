package main

import "github.com/KaramelBytes/socialhub-cli/cmd"

func main() {
	cmd.Execute()
}
