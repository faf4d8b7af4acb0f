package main

import "github.com/notargets/ncstitch/cmd"

func main() {
	cmd.Execute()
}
