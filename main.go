package main

import "itsm-knowledge-base/cmd"

func main() {
	cmd.Execute()
}
