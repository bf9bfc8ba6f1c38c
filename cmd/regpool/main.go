// Package main is the regpool entrypoint
package main

import "github.com/shehryarbajwa/regpool/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
