package main

import "github.com/acwea904/qlback/cmd"

func main() {
	cmd.Execute()
}
