package main

import "github.com/manekisoft/update-server/cmd/release-checker/cmd"

func main() {
	cmd.Execute()
}
