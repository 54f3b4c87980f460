package main

import "esgkb/internal/cli"

func main() {
	cli.Execute()
}
