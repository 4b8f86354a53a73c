package main

import "github.com/pilab-dev/pagepost/cmd/pagepostctl/cmd"

func main() {
	cmd.Execute()
}
