package main

import "fmt"

func main() {
	a := 2
	b := a + 3
	fmt.Println("first", b)
	b = 3
	fmt.Println("second", b)
}
