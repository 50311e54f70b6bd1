// Command control-interceptor is a local intercepting proxy in front of a
// media center's JSON-RPC control interface.
package main

import "github.com/rabits/control-interceptor/cmd/control-interceptor/cmd"

func main() {
	cmd.Execute()
}
