package main

import "github.com/sarchlab/tablesim/cmd/tablesim/cmd"

func main() {
	cmd.Execute()
}
