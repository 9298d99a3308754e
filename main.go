package main

import "github.com/vibast-solutions/ms-go-event-payments/cmd"

func main() {
	cmd.Execute()
}
