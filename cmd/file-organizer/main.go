package main

import (
	"fmt"
	"os"

	organizer "github.com/thrawn01/file-organizer"
)

func main() {
	if err := organizer.RunCmd(os.Args, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
