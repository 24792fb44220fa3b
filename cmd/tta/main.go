package main

import "github.com/texttoaction/tta/internal/cli"

func main() {
	cli.Execute()
}
