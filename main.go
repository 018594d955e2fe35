package main

import "github.com/itsmostafa/pseudoshell/cmd"

func main() {
	cmd.Execute()
}
