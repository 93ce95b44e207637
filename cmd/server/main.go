package main

import (
	"github.com/voicedeck/voicedeck/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
