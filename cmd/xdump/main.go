// Command xdump computes consistent partial dumps of a PostgreSQL database.
package main

import "github.com/dbsmedya/xdump/cmd/xdump/cmd"

func main() {
	cmd.Execute()
}
