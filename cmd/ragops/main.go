// Package main is the entry point for the ragops API server.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/ragops/cmd/ragops/app"
)

func main() {
	app.NewApp().Run()
}
