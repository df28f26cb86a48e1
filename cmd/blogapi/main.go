package main

import "github.com/JakeFAU/quickblog-api/cmd"

func main() {
	cmd.Execute()
}
