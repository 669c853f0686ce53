/*
Package ports defines the driven ports (interfaces) for the Parley dialogue engine.

These interfaces decouple the session state machine from the host it runs in:
the simulation that owns participants, the UI surface, the timer service, the
row tables and the transport that links an authority to its cosmetic peers.

# Key Interfaces

  - Participant: an entity that takes part in a dialogue (NPC, player, prop).
  - UserInterface: receives UI commands drawn from domain.UICommand.
  - Scheduler: schedule-once, cancel-by-handle and next-tick services.
  - RowResolver: resolves (table, key) into a domain.Row.
  - GraphLoader: returns authored graphs by name.
  - SnapshotStore: persists replicated snapshots between process restarts.
  - DistributedLocker: coordinates the authority lease across replicas.
  - Transport: carries requests to the authority and snapshots back to peers.
*/
package ports
