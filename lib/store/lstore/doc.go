// Package lstore implements store.IStore on a local db.KVDB.
//
// Every write runs inside a binlog.Transaction: the data mutation and its binlog
// record are staged into one batch and committed atomically, so the binlog always
// describes exactly the committed data. Reads go to the engine directly and never
// take the transaction lock.
//
// Data layout (see package keys):
//
//	k|key                    -> value
//	h|len|name|field         -> value          H|name -> field count
//	s|len|name|member        -> decimal score  Z|name -> member count
//	z|len|name|score|member  -> ""
//	q|len|name|seq           -> item           Q|name -> item count
//	0x02|key                 -> meta value
//
// Usage Example:
//
//	s, err := lstore.Open(store.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	s.Set("greeting", []byte("hello"), binlog.TypeSync)
//	s.HSet("user:1", "name", []byte("ada"), binlog.TypeSync)
//	s.QPushBack("jobs", []byte("job-1"), binlog.TypeSync)
package lstore
