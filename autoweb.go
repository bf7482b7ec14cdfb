package main

import (
	cli "github.com/ken0yuan/auto-ai-web/cmd/autoweb"
)

func main() {
	cli.Execute()
}
