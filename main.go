package main

import "github.com/jmehdipour/billing-backend/cmd"

func main() {
	cmd.Execute()
}
