// Package main is the entry point for subgate.
package main

func main() {
	Execute()
}
