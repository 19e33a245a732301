package api

/*
Cache defines the PUBLIC contract of the statement cache, as seen by the database layer.
It guarantees certain behaviors without exposing internals:
slot layout, hashing, expiry strategy and locking are hidden behind this interface.

Call order expected from the database layer:
1. Connection opened        → Initialize()
2. Mutation succeeded       → Store(statement, "")
3. Before re-running a read → Lookup(statement)   (only when read-through is enabled)
4. Connection closed        → Release()
*/
type Cache interface {

	/*
		Initialize clears every slot.

		BEHAVIOR:
		---------
		- Idempotent, cannot fail
		- Re-arms a cache that was released
	*/
	Initialize()

	/*
		Lookup returns the value cached for key.

		BEHAVIOR:
		-------------------
		1. Slot holds key and the entry is fresh:
		   - Return (value, true)

		2. Slot is empty or holds a different key:
		   - Return ("", false)

		3. Slot holds key but the entry is stale:
		   - Clear the slot
		   - Return ("", false)
	*/
	Lookup(key string) (string, bool)

	/*
		LookupMatch behaves like Lookup, but a fresh value rejected by accept
		is reported as a miss (and counted as one). The entry is left in place.
	*/
	LookupMatch(key string, accept func(value string) bool) (string, bool)

	/*
		Store writes key → value into the single slot key maps to.

		BEHAVIOR:
		---------
		- Whatever occupied the slot is dropped, regardless of its key or freshness
		- The entry is timestamped now
		- Fails only for an empty key, an oversized entry, or a released cache
	*/
	Store(key, value string) error

	/*
		Release drops every held entry.

		WHEN TO CALL:
		-------------
		- Database connection closed
		- Tests cleanup

		Calling it twice is safe.
	*/
	Release()

	// IndexOf returns the slot index key maps to.
	IndexOf(key string) int
}
