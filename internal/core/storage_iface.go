// Package core holds the synchronization mechanisms: the storage and
// player surfaces, the logical clock, the reconciliation engine and the
// change notifier. It never talks to concrete adapters.
package core

// Storage is the persisted key-value facility this design assumes is
// visible to all participants. How the values become shared is the
// adapter's concern.
//
// Watch reports changes to a key made by other execution contexts. An
// implementation may also deliver a context's own writes (a directory
// watcher cannot tell writers apart); that is harmless because the
// reconciliation anti-echo rule ignores self-authored records.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
	// Watch returns a signal channel and a cancel func. Cancel is
	// idempotent and closes the channel.
	Watch(key string) (<-chan struct{}, func(), error)
}
