// Package testserver is a minimal integration-test harness for web applications.
//
// A Server starts the application under test, either as an http.Handler served from a
// goroutine or as a separate child process, and then waits a fixed startup delay. There is
// no readiness probe; if the application takes longer than the delay to start listening,
// the first requests will fail.
//
// A Client sends form-encoded POST requests (with optional file uploads) to the running
// application, carrying whatever cookies it was given at login, and treats any response
// other than 200 as a failure.
//
// A RouteTestBlock describes one request and the status code and JSON body expected back.
// Client.AssertBlock checks a single block; RunBlocks runs a list of them as named tests.
package testserver
