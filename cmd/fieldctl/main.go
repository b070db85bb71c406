package main

import "github.com/jengzang/floq-field/internal/cli"

func main() {
	cli.Execute()
}
