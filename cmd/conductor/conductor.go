package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kiosk404/conductor/internal/conductor"
)

func main() {
	conductor.NewApp("conductor").Run()
}
