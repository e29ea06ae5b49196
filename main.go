package main

import (
	"github.com/ColonelBlimp/notesynth/cmd"
	"github.com/ColonelBlimp/notesynth/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
