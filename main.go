package main

import (
	"github.com/sw33tLie/powerlole/cmd"
)

func main() {
	cmd.Execute()
}
