package pool

import (
	"time"

	"github.com/google/uuid"
)

// Task is one unit of work dispatched through the pool's worker
// goroutines.
type Task struct {
	ID         string
	ScriptPath string
	Source     string
	Context    any
	UserData   any
	Callback   func(Result)

	submittedAt time.Time
}

// NewTask builds a task with a fresh unique id (uuid in place of the
// "unique id (monotonic timestamp)" — a uuid.NewString() gives a
// unique token; submittedAt carries the actual timestamp ordering).
func NewTask(scriptPath, source string, callback func(Result)) *Task {
	return &Task{
		ID:          uuid.NewString(),
		ScriptPath:  scriptPath,
		Source:      source,
		Callback:    callback,
		submittedAt: time.Now(),
	}
}

// Result is a completed task's outcome.
type Result struct {
	TaskID       string
	Status       Status
	ErrorMessage string
	Elapsed      time.Duration
	Value        any
}

// Status is the pool's return-code convention: 0 success,
// distinct non-zero codes per failure category.
type Status int

const (
	StatusSuccess Status = iota
	StatusCompileError
	StatusRuntimeError
	StatusMemoryError
	StatusSecurityViolation
	StatusPoolExhausted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCompileError:
		return "compile error"
	case StatusRuntimeError:
		return "runtime error"
	case StatusMemoryError:
		return "memory error"
	case StatusSecurityViolation:
		return "security violation"
	case StatusPoolExhausted:
		return "pool exhausted"
	default:
		return "unknown"
	}
}
