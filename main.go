package main

import (
	_ "github.com/clynamic/tagem/src/admintools"
	"github.com/clynamic/tagem/src/website"
)

func main() {
	website.WebsiteCommand.Execute()
}
