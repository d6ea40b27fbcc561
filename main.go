package main

import "Decibel/cmd"

func main() {
	cmd.Execute()
}
