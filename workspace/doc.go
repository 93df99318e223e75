// Package workspace allocates and removes per-request scratch directories.
//
// Every request gets its own freshly created temporary directory. The
// directory and everything the request created inside it is removed by
// Release, which never fails the request: removal errors are logged.
package workspace
