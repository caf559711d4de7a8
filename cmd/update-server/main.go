package main

import "github.com/manekisoft/update-server/cmd/update-server/cmd"

func main() {
	cmd.Execute()
}
