package main

import "github.com/deskline/helpdesk/internal/cli"

func main() {
	cli.Execute()
}
