package main

import (
	"portfolio-drop-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
