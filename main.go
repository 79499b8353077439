package main

import "organicscan/cmd"

func main() {
	cmd.Execute()
}
