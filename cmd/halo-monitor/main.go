package main

import "github.com/oshokin/halo-guard/cmd/halo-monitor/cmd"

func main() {
	cmd.Execute()
}
