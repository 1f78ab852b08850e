package storage

// Entry is a single key/value pair returned by a range scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// OpType distinguishes batch operations.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
)

// Op is one write inside an atomic batch.
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// Put builds a put operation.
func Put(key, value []byte) Op {
	return Op{Type: OpPut, Key: key, Value: value}
}

// Delete builds a delete operation.
func Delete(key []byte) Op {
	return Op{Type: OpDelete, Key: key}
}

// Order selects range scan direction.
type Order int

const (
	Ascending Order = iota
	Descending
)
