package main

import "github.com/sarchlab/fetchbuf/fetchbuf/cmd"

func main() {
	cmd.Execute()
}
