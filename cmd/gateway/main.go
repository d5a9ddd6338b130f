// Command gateway is the sensor data gateway's entry point.
package main

import (
	"os"

	"github.com/sensorgateway/gateway/cmd/gateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("%v", err)
		os.Exit(1)
	}
}
