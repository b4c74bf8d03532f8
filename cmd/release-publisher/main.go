package main

import "github.com/oshokin/release-publisher/cmd/release-publisher/cmd"

func main() {
	cmd.Execute()
}
