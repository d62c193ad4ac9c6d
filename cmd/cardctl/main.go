package main

import "github.com/nfrund/profilecard/cmd/cardctl/cmd"

func main() {
	cmd.Execute()
}
