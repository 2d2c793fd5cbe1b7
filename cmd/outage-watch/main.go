package main

import (
	"os"

	"horse.fit/outage-watch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
