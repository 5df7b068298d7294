package main

import "github.com/vibast-solutions/ms-go-grading/cmd"

func main() {
	cmd.Execute()
}
