package main

import "github.com/KaramelBytes/filflo-cli/cmd"

func main() {
	cmd.Execute()
}
