// This program manages a todo list held in a rowdb ledger.
package main

import "github.com/ardanlabs/todochain/app/tooling/todo/cmd"

func main() {
	cmd.Execute()
}
