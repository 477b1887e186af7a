// Command invctl imports, exports and lists factory inventory rows on a
// running inventory server.
package main

func main() {
	Execute()
}
