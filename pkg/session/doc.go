/*
Package session implements snapshot persistence orchestration.

It serialises access to the stored snapshot of each session across goroutines
and, with a distributed locker, across replicas. Saves are last-write-wins by
snapshot sequence, so a slow writer never overwrites a newer mirror.
*/
package session
