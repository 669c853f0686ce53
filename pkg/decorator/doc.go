/*
Package decorator implements pluggable behaviours attached to dialogue nodes
and graphs.

A graph stores decorators in their authored form (domain.DecoratorSpec). When a
session starts the runtime asks a Registry to turn every spec into a live
Decorator instance, so state such as a pending timer belongs to one session and
never leaks into the next.

Hooks run at fixed points:

  - Validate at authoring time, through the validator.
  - Initialize once per session, when the instance is created.
  - Evaluate whenever the owning node is considered as a candidate.
  - Execute exactly once when a node is entered.
  - Cleanup when the session shuts the graph down.
*/
package decorator
