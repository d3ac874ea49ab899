package main

import "github.com/deploymenttheory/go-smartmedia/cmd"

func main() {
	cmd.Execute()
}
