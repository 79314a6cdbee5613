package main

import "timemate/cmd"

func main() {
	cmd.Execute()
}
