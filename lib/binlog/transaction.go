package binlog

// Transaction is the exclusive write section of a Queue. It stages data mutations
// and binlog records into one batch that Commit writes atomically.
//
//	tx := binlog.NewTransaction(q)
//	defer tx.Close()
//	tx.Put(k, v)
//	tx.AddLog(binlog.TypeSync, binlog.CmdKSet, k)
//	return tx.Commit()
//
// A Transaction must not be shared between goroutines.
type Transaction struct {
	q      *Queue
	closed bool
}

// NewTransaction acquires the queue's exclusive section and starts a new batch
func NewTransaction(q *Queue) *Transaction {
	q.mu.Lock()
	q.begin()
	return &Transaction{q: q}
}

// Put stages a data write
func (tx *Transaction) Put(key, value []byte) {
	tx.q.batch.Set(key, value)
}

// Delete stages a data delete
func (tx *Transaction) Delete(key []byte) {
	tx.q.batch.Delete(key)
}

// AddLog stages a binlog record. It does nothing for a disabled queue or a mirror write.
func (tx *Transaction) AddLog(t Type, c Cmd, key []byte) {
	tx.q.addLog(t, c, key)
}

// Commit writes the staged batch. On failure no sequence number is consumed.
func (tx *Transaction) Commit() error {
	return tx.q.commit()
}

// Close discards whatever was not committed and releases the exclusive section.
// It is safe to call after Commit and more than once.
func (tx *Transaction) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.q.rollback()
	tx.q.mu.Unlock()
}
