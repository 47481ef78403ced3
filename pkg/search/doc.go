// Package search implements the console's list search: a query syntax for list filters,
// a debouncer that coalesces keystrokes, and a result slot where the latest query wins.
//
// # Query Syntax
//
// Free text matches names, emails and company names. Filters narrow the list:
//
//	ada status:active role:DEVELOPER
//	company:"Acme Corp" status:suspended
//
// # Live Search
//
// Live wires the debouncer to the slot. Typing "a", "ab", "abc" inside the quiet period
// runs a single query for "abc". Queries already running are not cancelled; a result
// that arrives after a newer query started is discarded.
//
//	live := search.NewLive(150*time.Millisecond, runUserQuery)
//	live.Input(ctx, "ab")
//	result := live.Result()
package search
