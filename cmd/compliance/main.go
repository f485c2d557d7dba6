// Command compliance runs and administers the fleet compliance service.
package main

func main() {
	Execute()
}
