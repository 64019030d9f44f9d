package main

import "github.com/treeroute/treeroute/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
