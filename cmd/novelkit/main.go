package main

import "github.com/kittclouds/novelkit/internal/cli"

func main() {
	cli.Execute()
}
