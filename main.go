package main

import "metaredact/cmd"

func main() {
	cmd.Execute()
}
