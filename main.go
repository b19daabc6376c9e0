package main

import (
	"os"

	"github.com/prompt-manager/prompt-manager/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
