package main

import "github.com/bryanwahyu/sonifier/internal/cmd"

func main() {
	cmd.Execute()
}
