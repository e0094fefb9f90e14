package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/convtree/internal/domain"
	"github.com/bnema/convtree/internal/ports"
	"go.uber.org/zap"
)

const DefaultFetchConcurrency = 8

type EngineOptions struct {
	Profiles   ports.ProfileSource
	Runtime    ports.RuntimeSource
	TodoParser ports.TodoParser
	Metrics    ports.Metrics
	Clock      ports.Clock
	Logger     *zap.Logger
	// FetchConcurrency bounds the per-descendant message fan-out. Zero or
	// negative means unbounded.
	FetchConcurrency int
	// OnChange is called outside the engine lock after every publish.
	OnChange func(DetailState)
}

// Engine keeps the derived views of one conversation tree up to date. All
// cache mutation happens under mu; fetches run outside it and re-enter to commit.
type Engine struct {
	rootID   domain.ConversationID
	store    ports.ConversationStore
	runtime  ports.RuntimeSource
	metrics  ports.Metrics
	clock    ports.Clock
	logger   *zap.Logger
	onChange func(DetailState)
	fanout   int

	todos       TodoAggregator
	delegations DelegationExtractor
	reports     ReportReferenceResolver
	names       *profileNames
	bg          *background
	recompute   *coalescer

	mu                 sync.Mutex
	loading            bool
	loadedOnce         bool
	bound              bool
	tree               *TreeIndex
	descendants        map[domain.ConversationID]domain.Conversation
	descendantMessages map[domain.ConversationID][]domain.Message
	todoCache          map[domain.ConversationID]domain.TodoState
	dirty              map[domain.ConversationID]struct{}
	fetching           map[domain.ConversationID]struct{}
	reportSnapshot     []domain.Report
	view               DetailState
}

func NewEngine(conversation domain.Conversation, store ports.ConversationStore, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	fanout := opts.FetchConcurrency
	if fanout < 0 {
		fanout = 0
	}

	e := &Engine{
		rootID:             conversation.ID,
		store:              store,
		runtime:            opts.Runtime,
		metrics:            metrics,
		clock:              clock,
		logger:             logger.With(zap.String("conversation", string(conversation.ID))),
		onChange:           opts.OnChange,
		fanout:             fanout,
		todos:              NewTodoAggregator(opts.TodoParser),
		reports:            NewReportReferenceResolver(logger),
		bg:                 newBackground(),
		tree:               NewTreeIndex([]domain.Conversation{conversation}),
		descendants:        map[domain.ConversationID]domain.Conversation{},
		descendantMessages: map[domain.ConversationID][]domain.Message{},
		todoCache:          map[domain.ConversationID]domain.TodoState{},
		dirty:              map[domain.ConversationID]struct{}{},
		fetching:           map[domain.ConversationID]struct{}{},
		view:               DetailState{Conversation: conversation, State: StateIdle},
	}

	e.recompute = newCoalescer(e.runScheduledPass, func(job func()) bool {
		return e.bg.Go(func(context.Context) { job() })
	})
	e.names = newProfileNames(opts.Profiles, e.bg.Go, e.recompute.Signal, e.logger)
	e.delegations = NewDelegationExtractor(e.names)

	return e
}

func (e *Engine) RootID() domain.ConversationID {
	return e.rootID
}

// Snapshot returns a deep copy of the current derived state.
func (e *Engine) Snapshot() DetailState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.view.clone()
}

// Bind subscribes the engine to a push source. Only the first successful call binds.
func (e *Engine) Bind(source ports.UpdateSource) error {
	e.mu.Lock()
	if e.bound {
		e.mu.Unlock()
		return nil
	}
	e.bound = true
	e.mu.Unlock()

	if err := source.Subscribe(e.bg.ctx, e); err != nil {
		e.mu.Lock()
		e.bound = false
		e.mu.Unlock()
		return fmt.Errorf("bind update source: %w", err)
	}

	return nil
}

// ChildConversation maps a delegation id back to its direct child conversation.
func (e *Engine) ChildConversation(delegationID string) (domain.Conversation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := domain.ConversationID(delegationID)
	for _, item := range e.view.Delegations {
		if item.ID == delegationID {
			target = item.ConversationID
			break
		}
	}

	for _, child := range e.view.Children {
		if child.ID == target {
			return child, true
		}
	}

	return domain.Conversation{}, false
}

// Close stops background fetches and recompute work and waits for them.
func (e *Engine) Close() {
	e.bg.Close()
}

func (e *Engine) scheduleRecompute() {
	e.recompute.Signal()
}

// Settle waits until no background job or recompute pass is running.
func (e *Engine) Settle() {
	e.bg.Wait()
}

func (e *Engine) publishLocked() DetailState {
	return e.view.clone()
}

func (e *Engine) notify(state DetailState) {
	if e.onChange != nil {
		e.onChange(state)
	}
}

func (e *Engine) runScheduledPass() {
	e.mu.Lock()
	e.recomputeLocked()
	state := e.publishLocked()
	e.mu.Unlock()

	e.notify(state)
}

type noopMetrics struct{}

func (noopMetrics) RecomputePass(time.Duration) {}
func (noopMetrics) LoadCompleted(time.Duration) {}
func (noopMetrics) FetchFailed(string)          {}

var _ ports.UpdateSink = (*Engine)(nil)
