package analysis

import (
	"context"
	"sync"
)

// State is a step of an analysis run
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateCrawling   State = "crawling"
	StateProcessing State = "processing"
	StateAnalyzing  State = "analyzing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateCrawling, StateFailed},
	StateCrawling:   {StateProcessing, StateFailed},
	StateProcessing: {StateAnalyzing, StateFailed},
	StateAnalyzing:  {StateDone, StateFailed},
}

// CanTransition reports whether a run may move from one state to another.
// Done and Failed are terminal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Message returns the status text shown while a run is in s
func (s State) Message() string {
	switch s {
	case StateValidating:
		return "URL을 확인하고 있습니다..."
	case StateCrawling:
		return "뉴스 기사 수집 중..."
	case StateProcessing:
		return "기사 본문을 정리하고 있습니다..."
	case StateAnalyzing:
		return "요약, 감정 분석, 키워드 추출 중..."
	case StateDone:
		return "분석 완료!"
	case StateFailed:
		return "분석에 실패했습니다."
	default:
		return ""
	}
}

// Transition describes one state change of a run
type Transition struct {
	RunID string
	From  State
	To    State
	Err   error // set when To is StateFailed
}

// Observer is notified of state transitions
type Observer interface {
	OnTransition(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(ctx context.Context, t Transition)

func (f ObserverFunc) OnTransition(ctx context.Context, t Transition) {
	f(ctx, t)
}

// Recorder is an Observer that keeps the transitions it has seen
type Recorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *Recorder) OnTransition(ctx context.Context, t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
}

// Transitions returns the recorded transitions in order
func (r *Recorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

// States returns the states entered, in order
func (r *Recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]State, len(r.transitions))
	for i, t := range r.transitions {
		states[i] = t.To
	}
	return states
}
