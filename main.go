package main

import "github.com/shelfwise/catalog-notifier/cmd"

func main() {
	cmd.Execute()
}
