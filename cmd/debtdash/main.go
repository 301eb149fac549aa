package main

import "debt-dashboard/internal/cli"

func main() {
	cli.Execute()
}
