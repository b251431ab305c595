package structapi

// Dumper is the last-resort spill for rows that could not be published.
// Dump must not fail; Return hands back one previously dumped row at a
// time until none remain.
type Dumper interface {
	Dump(query string, rows [][]interface{})
	Return() (exist bool, query string, rows []interface{})
}
