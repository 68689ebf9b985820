package main

import "github.com/sasta-kro/corvus-paas/leadmagnet-host/cmd"

func main() {
	cmd.Execute()
}
