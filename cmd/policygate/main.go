package main

import "github.com/policygate/policygate/internal/cli"

func main() {
	cli.Execute()
}
