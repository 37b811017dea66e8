package main

import "github.com/DazeHolic/lvdb/cmd"

func main() {
	cmd.Execute()
}
