package main

import (
	"os"

	"horse.fit/technus/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
