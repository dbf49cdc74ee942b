// Command pvlog reads the CBOR protocol logs pvserver writes with
// --protocol-log.
//
//	pvlog view server.plog
//	pvlog view --pv 'TEMP:*' --events alarm server.plog
//	pvlog export --format csv --category write -o writes.csv server.plog
//	pvlog filter --conn-id console -o console.plog server.plog
//	pvlog stats server.plog
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
