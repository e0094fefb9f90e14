package domain

type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoDone       TodoStatus = "done"
	TodoSkipped    TodoStatus = "skipped"
)

type TodoItem struct {
	ID          string
	Title       string
	Description string
	Status      TodoStatus
	SkipReason  string
}

type TodoState struct {
	Items []TodoItem
}

func (s TodoState) HasTodos() bool {
	return len(s.Items) > 0
}

// CompletedCount counts done items. Skipped items stay in the total.
func (s TodoState) CompletedCount() int {
	completed := 0
	for _, item := range s.Items {
		if item.Status == TodoDone {
			completed++
		}
	}

	return completed
}

func (s TodoState) InProgressItem() (TodoItem, bool) {
	for _, item := range s.Items {
		if item.Status == TodoInProgress {
			return item, true
		}
	}

	return TodoItem{}, false
}

func (s TodoState) Stats() AggregateTodoStats {
	return AggregateTodoStats{}.Add(s)
}

// AggregateTodoStats is a plain sum, so combining is associative and commutative.
// The zero value is the empty aggregate.
type AggregateTodoStats struct {
	Completed int
	Total     int
}

func (a AggregateTodoStats) Add(state TodoState) AggregateTodoStats {
	return AggregateTodoStats{
		Completed: a.Completed + state.CompletedCount(),
		Total:     a.Total + len(state.Items),
	}
}

func (a AggregateTodoStats) Merge(other AggregateTodoStats) AggregateTodoStats {
	return AggregateTodoStats{
		Completed: a.Completed + other.Completed,
		Total:     a.Total + other.Total,
	}
}

func (a AggregateTodoStats) HasTodos() bool {
	return a.Total > 0
}

func (a AggregateTodoStats) IsComplete() bool {
	return a.Total > 0 && a.Completed == a.Total
}
