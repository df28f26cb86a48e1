// The main package for the blog API executable.
package main

import (
	"github.com/JakeFAU/quickblog-api/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
