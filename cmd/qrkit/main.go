package main

import "github.com/MeKo-Tech/qrkit/cmd/qrkit/cmd"

func main() {
	cmd.Execute()
}
