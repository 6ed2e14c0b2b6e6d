package main

import "github.com/Davincible/chatkit-go/cmd"

func main() {
	cmd.Execute()
}
