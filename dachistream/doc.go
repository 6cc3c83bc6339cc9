// Package dachistream implements the cyclic chat-message buffering and
// selection engine at the heart of the service.
//
// Incoming Twitch chat messages are appended to a cycle-scoped buffer via
// AddMessage. A fixed-interval scheduler drains the buffer: it takes a fresh
// settings snapshot, picks at most one message under the configured selection
// strategy (most_active, random, new_chatter), assembles a plain-text context
// from settings and stored chat history, and hands (message, context) to the
// callback supplied at Start. The buffer is cleared at the end of every
// processing cycle regardless of outcome; paused cycles skip processing but
// keep accumulating messages.
//
// Every transition and notable event is recorded in a bounded in-memory log
// ring and the current state is materializable on demand, so a monitoring
// surface can poll State/Logs or subscribe to push updates through the
// onStatusChange observer.
package dachistream
