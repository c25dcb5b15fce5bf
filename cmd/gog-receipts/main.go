package main

import (
	"gog-receipts/cmd/gog-receipts/commands"
	"gog-receipts/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
