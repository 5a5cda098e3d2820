package main

import "github.com/nfrund/projecthub/cmd/projecthub-cli/cmd"

func main() {
	cmd.Execute()
}
