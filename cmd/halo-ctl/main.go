package main

import "github.com/oshokin/halo-guard/cmd/halo-ctl/cmd"

func main() {
	cmd.Execute()
}
