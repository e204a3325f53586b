package main

import "github.com/Bitlatte/readnext/cmd"

func main() {
	cmd.Execute()
}
