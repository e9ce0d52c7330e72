package main

import "github.com/telemetry-sdk/edge-delivery/cmd/edge-delivery/cmd"

func main() {
	cmd.Execute()
}
