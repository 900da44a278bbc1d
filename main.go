package main

import "faultcheck/cmd"

func main() {
	cmd.Execute()
}
