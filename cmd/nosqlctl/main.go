// Command nosqlctl opens a nosqlapi driver and runs database-level and
// lookup operations against it.
package main

import "github.com/mesh-intelligence/nosqlapi/internal/cli"

func main() {
	cli.Execute()
}
