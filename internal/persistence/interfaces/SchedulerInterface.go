package interfaces

// Checkpointer is told about every state mutation.
type Checkpointer interface {
	Checkpoint()
}

type SchedulerInterface interface {
	Checkpointer
	Init()
	Stop()
	Restore() error
	Persist() error
}
