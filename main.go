package main

import "github.com/tanq16/dw/cmd"

func main() {
	cmd.Execute()
}
