package main

import "tunemux/cmd"

func main() {
	cmd.Execute()
}
