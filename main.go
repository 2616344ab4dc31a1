package main

import "github.com/leocavalcante/leochat/cmd"

func main() {
	cmd.Execute()
}
