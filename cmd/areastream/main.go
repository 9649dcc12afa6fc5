package main

import "github.com/bryanchriswhite/AreaStream/cmd/areastream/commands"

func main() {
	commands.Execute()
}
