package utils

import "strings"

// ParseCSV reads a list parameter such as the event stream's
// ?types=TRADE_EXECUTED,job_failed into its entries, trimmed and in order.
// Blank entries are dropped and a list with none yields nil. Case is left
// to the caller.
func ParseCSV(s string) []string {
	var entries []string
	for _, field := range strings.Split(s, ",") {
		if field = strings.TrimSpace(field); field != "" {
			entries = append(entries, field)
		}
	}
	return entries
}
