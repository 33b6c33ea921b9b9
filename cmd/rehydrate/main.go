package main

import "github.com/mnemohq/rehydrate/internal/cli"

func main() {
	cli.Execute()
}
