package main

import "github.com/cyp0633/librecur/internal/cli"

func main() {
	cli.Execute()
}
