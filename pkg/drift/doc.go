// Package drift holds the shared vocabulary of the driftline reader:
// persisted domain records, task and event contracts, the classified task
// error, and the provider interface AI backends implement.
//
// Every layer imports this package; it imports no internal packages.
package drift
