/*
Package runtime implements the dialogue session state machine.

A Manager owns at most one session at a time. Starting a session builds a
fresh domain.Context and walks the graph through the node pipeline:

	prepare -> process -> play rows -> complete node -> prepare(next)

The pipeline never blocks. Every wait (a row timer, an AwaitInput row, a Delay
or ReturnTo pause, a pending option selection) is recorded as an explicit
Suspension carrying a token. The host scheduler resumes the session by calling
Wake with that token; a stale token is ignored, which is how closing a session
cancels callbacks already in flight.

Lifecycle hooks and UI commands are queued while the manager lock is held and
delivered in emission order once the operation returns, so subscribers may call
back into the Manager.
*/
package runtime
