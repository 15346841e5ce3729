package main

import (
	"ocm.software/open-component-model/plughost/cmd"
)

func main() {
	cmd.Execute()
}
