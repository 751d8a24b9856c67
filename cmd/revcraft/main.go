package main

import "github.com/revcraft/revcraft/internal/cli"

func main() {
	cli.Execute()
}
