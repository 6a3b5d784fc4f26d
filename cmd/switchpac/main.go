package main

import (
	// Register Plugins via side-effects
	_ "switchpac/internal/publishers/file"
	_ "switchpac/internal/publishers/github"
	_ "switchpac/internal/publishers/stdout"
)

func main() {
	Execute()
}
