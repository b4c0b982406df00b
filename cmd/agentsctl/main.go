package main

import "github.com/xela07ax/spaceai-agent-portal/cmd/agentsctl/cmd"

func main() {
	cmd.Execute()
}
