package main

import "github.com/nextlevelbuilder/relayd/cmd"

func main() {
	cmd.Execute()
}
