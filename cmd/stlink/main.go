package main

import "github.com/OpenTraceLab/OpenTraceSTLink/cmd/stlink/cmd"

func main() {
	cmd.Execute()
}
