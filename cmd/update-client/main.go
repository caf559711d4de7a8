package main

import "github.com/manekisoft/update-server/cmd/update-client/cmd"

func main() {
	cmd.Execute()
}
