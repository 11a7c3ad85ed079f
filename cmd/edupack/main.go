package main

import "github.com/edupack/edupack/internal/cli"

func main() {
	cli.Execute()
}
