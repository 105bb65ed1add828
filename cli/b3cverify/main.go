package main

import "github.com/everFinance/b3cverify/cli/b3cverify/cmd"

func main() {
	cmd.Execute()
}
