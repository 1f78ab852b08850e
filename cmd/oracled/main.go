package main

import "metric-oracle/internal/cli"

func main() {
	cli.Execute()
}
