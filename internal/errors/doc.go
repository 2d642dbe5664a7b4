// Package errors provides coded, actionable errors for the hashhist command
// and the configuration loader.
//
// Every error carries a code from the registry that fixes its category and
// default message:
//
//	E1xx  config   configuration file problems
//	E2xx  storage  persisted state backends
//	E3xx  coder    path coders and coder scripts
//	E4xx  bridge   the websocket bridge server
//	E5xx  cli      command-line usage
//
// Errors can point at a line of a configuration file; Format then shows the
// surrounding lines:
//
//	err := errors.New("E102").
//	    WithLocation("hashhistory.toml", 3, 12).
//	    WithSuggestion(`Use one of: hashbang, identity, noslash, slash`)
//
//	fmt.Println(err.Format())
//	// ERROR E102: Invalid hash type
//	//
//	//   hashhistory.toml:3:12
//	//
//	//       2 │ queryKey = "_k"
//	//   →   3 │ hashType = "slashy"
//	//         │            ^
//	//       4 │
//	//
//	//   Hint: Use one of: hashbang, identity, noslash, slash
package errors
