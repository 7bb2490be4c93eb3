// Package main provides the kdpparser CLI.
//
// Usage:
//
//	kdpparser add --name <title> --url <product-url> --language en
//	kdpparser parse <product-url>
//	kdpparser parse --id <record-id>
//	kdpparser parse-all --report out/report.csv
//	kdpparser status
package main

func main() {
	Execute()
}
