package messaging

// QueueNameSet holds the four queue names owned by one message type.
type QueueNameSet struct {
	Priority   string
	In         string
	Out        string
	DeadLetter string
}

// QueueNamesFor derives the queue name set for a message type name.
// Names are stable for the lifetime of the process and collision-free
// for distinct type names.
func QueueNamesFor(typeName string) QueueNameSet {
	return QueueNameSet{
		Priority:   "ferry.priority." + typeName,
		In:         "ferry.in." + typeName,
		Out:        "ferry.out." + typeName,
		DeadLetter: "ferry.dlq." + typeName,
	}
}
