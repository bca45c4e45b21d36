// The main package for the soulcrawl executable.
package main

import (
	"github.com/mjsoul-tools/soulcrawl/cmd"
)

func main() {
	cmd.Execute()
}
