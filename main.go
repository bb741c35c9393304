package main

import "github.com/tablevet/tablevet/cmd"

func main() {
	cmd.Execute()
}
