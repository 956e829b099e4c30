package main

import "github.com/skaphos/dotkeeper/cmd/dotkeeper"

var execute = dotkeeper.Execute

func main() {
	execute()
}
