// Package errors provides code-tagged usage errors for trackstate.
//
// Every failure raised by the store engine is a programmer-usage error. Each
// carries a stable code (e.g. "E104") that maps to:
//   - A short message describing the misuse
//   - A detailed explanation
//   - A hint describing the supported way
//
// # Error Categories
//
//   - usage: invalid arguments handed to the store
//   - async: reads or writes racing a pending asynchronous root
//   - lifecycle: writes into a destroyed store
//   - view: attempts to mutate or serialise a read-only view
//   - extension: extension method resolution and preset vetoes
//   - config, source, cli: ambient tooling errors
//
// # Usage
//
//	err := errors.New("E104").WithPath("user.name")
//	fmt.Println(err.Format())
//	// ERROR E104: Set while asynchronous root is pending
//	//
//	//   at path: user.name
//	//
//	//   The root value is still waiting for an asynchronous result...
package errors
