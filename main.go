package main

import (
	"equipment_usage_tracker/cmd"
	"equipment_usage_tracker/config"
)

func main() {
	config.LoadEnv()
	cmd.Execute()
}
