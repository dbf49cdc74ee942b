// Command pvserver serves the process variables of a YAML database.
//
// It loads the database, creates every PV on an in-process server and
// optionally drives simulated PVs and an operator console. Remote clients
// are represented by the console; the network transport is not part of
// this command.
//
// Usage:
//
//	pvserver --db <file.yaml> [flags]
//
// Examples:
//
//	# Serve a database until interrupted
//	pvserver --db pvs.yaml
//
//	# Drive simulated PVs and record the protocol log
//	pvserver --db pvs.yaml --simulate --protocol-log server.plog
//
//	# Interactive console with debug logging
//	pvserver --db pvs.yaml -i --log-level debug
package main

func main() {
	Execute()
}
