package main

import (
	"github.com/fvutils/dv-transaction-trace/pkg/cmd"
)

func main() {
	cmd.Execute()
}
