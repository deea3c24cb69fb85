package main

import cli "fileindex/dbcli"

func main() {
	cli.Execute()
}
