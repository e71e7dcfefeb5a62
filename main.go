package main

import "github.com/AvaProtocol/ap-aa-sdk/cmd"

func main() {
	cmd.Execute()
}
