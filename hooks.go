package journeycas

// Hooks lightweight callbacks for high-signal engine events.
// Implementations MUST be cheap and non-blocking.
// The engine calls them on hot paths; wrap slow sinks with hooks/async.
type Hooks interface {
	// A CAS lost the race on key; attempt is 1-based. The engine will reload
	// and retry unless the budget is spent.
	CASConflict(key string, attempt int)

	// Every attempt lost; the caller gets a ConflictError.
	RetryExhausted(key string, attempts int)

	// An update committed version on its attempts-th try.
	Committed(key string, version int64, attempts int)

	// The store failed an operation (transport error or timeout).
	// op ∈ {"get", "get_version", "cas", "set"}; "set" comes from
	// Initialize, which writes without CAS.
	StoreError(op, key string, err error)

	// A stored document could not be decoded.
	DecodeError(key string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CASConflict(string, int)          {}
func (NopHooks) RetryExhausted(string, int)       {}
func (NopHooks) Committed(string, int64, int)     {}
func (NopHooks) StoreError(string, string, error) {}
func (NopHooks) DecodeError(string, error)        {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

var _ Hooks = MultiHooks(nil)

func (m MultiHooks) CASConflict(k string, a int) {
	for _, h := range m {
		h.CASConflict(k, a)
	}
}

func (m MultiHooks) RetryExhausted(k string, a int) {
	for _, h := range m {
		h.RetryExhausted(k, a)
	}
}

func (m MultiHooks) Committed(k string, v int64, a int) {
	for _, h := range m {
		h.Committed(k, v, a)
	}
}

func (m MultiHooks) StoreError(op, k string, err error) {
	for _, h := range m {
		h.StoreError(op, k, err)
	}
}

func (m MultiHooks) DecodeError(k string, err error) {
	for _, h := range m {
		h.DecodeError(k, err)
	}
}
