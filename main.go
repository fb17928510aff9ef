package main

import "github.com/example/tutorbot/internal/cli"

func main() {
	cli.Execute()
}
