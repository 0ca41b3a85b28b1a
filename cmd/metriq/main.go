// Command metriq is the CLI for the metric query compilation engine.
package main

import "github.com/leapstack-labs/metriq/internal/cli"

func main() {
	cli.Execute()
}
