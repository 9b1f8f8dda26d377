package main

import (
	"github.com/purpose168/parley-cn/internal/cmd"
	"github.com/purpose168/parley-cn/internal/log"
)

func main() {
	defer log.RecoverPanic("main", nil)
	cmd.Execute()
}
