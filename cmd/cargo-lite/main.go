package main

import (
	"cargolite/cmd/cargo-lite/internal"
)

func main() {
	internal.Execute()
}
