// Package replication links one authoritative dialogue Manager with any number
// of mirroring peers.
//
// Peers never mutate a session themselves. They send a ports.Request to the
// Authority, which applies it to its Manager and mirrors the resulting
// domain.Snapshot back. Intermediate states are not replicated individually:
// the Authority debounces changes and broadcasts only the latest snapshot.
// Peers apply snapshots last-write-wins by sequence number.
package replication
