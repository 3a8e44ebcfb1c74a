package main

import (
	"log"

	"datafold/cmd/dfold/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
