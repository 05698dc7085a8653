package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeType is one level of the fixed four-level hierarchy.
type NodeType string

const (
	NodeGoal      NodeType = "GOAL"
	NodeObjective NodeType = "OBJECTIVE"
	NodeKeyResult NodeType = "KEY_RESULT"
	NodeTask      NodeType = "TASK"
)

// ChildType maps each node type to the only type its children may have.
// Tasks are leaves and have no entry.
var ChildType = map[NodeType]NodeType{
	NodeGoal:      NodeObjective,
	NodeObjective: NodeKeyResult,
	NodeKeyResult: NodeTask,
}

// Display returns the human form used for auto-numbered titles ("Key Result #3").
func (t NodeType) Display() string {
	switch t {
	case NodeGoal:
		return "Goal"
	case NodeObjective:
		return "Objective"
	case NodeKeyResult:
		return "Key Result"
	case NodeTask:
		return "Task"
	default:
		return string(t)
	}
}

func (t NodeType) Valid() bool {
	switch t {
	case NodeGoal, NodeObjective, NodeKeyResult, NodeTask:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
)

// Node is one element of the hierarchy. The id is the external identifier:
// it is the same string in the JSON document, the SQL mirror and the
// spreadsheet mirror, and it never changes once assigned.
type Node struct {
	ID          string   `json:"id"`
	Type        NodeType `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`

	// Progress is manual for tasks and derived everywhere else; see tree.Compute.
	Progress int `json:"progress"`

	ParentID *string  `json:"parentId,omitempty"`
	Children []string `json:"children"`

	// CycleID is set on goals only; descendants inherit it for filtering.
	CycleID string `json:"cycleId,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy,omitempty"`
	Assignees []string  `json:"assignees,omitempty"`

	KeyResult *KeyResultMeta `json:"keyResult,omitempty"`
	Task      *TaskMeta      `json:"task,omitempty"`
}

// KeyResultMeta holds the metric fields present only on KEY_RESULT nodes.
type KeyResultMeta struct {
	TargetValue  float64 `json:"targetValue"`
	CurrentValue float64 `json:"currentValue"`
	Unit         string  `json:"unit,omitempty"`
}

// TaskMeta holds the schedule/timer fields present only on TASK nodes.
type TaskMeta struct {
	Status           TaskStatus `json:"status"`
	EstimatedMinutes int        `json:"estimatedMinutes,omitempty"`

	// TimeSpent is the cached sum of closed work-log durations, in minutes.
	TimeSpent int `json:"timeSpent"`

	// TimerStartedAt non-nil means this task holds the single active timer.
	TimerStartedAt *time.Time `json:"timerStartedAt,omitempty"`

	WorkLog []WorkLogEntry `json:"workLog,omitempty"`
}

// WorkLogEntry is one logged interval. Entries are append-only and addressed
// by StartedAt (exact match) for deletion; ID exists so the mirrors can key
// the corresponding rows.
type WorkLogEntry struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	Summary         string     `json:"summary,omitempty"`
}

// Cycle is a planning period (e.g. "Q3 2026") goals are filed under.
type Cycle struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
}

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleMember  UserRole = "member"
)

// User is an account that owns goal trees. Users are keyed by username
// across all stores.
type User struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName,omitempty"`
	Role        UserRole  `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	IsActive    bool      `json:"isActive"`
}

// CheckIn is a point-in-time confidence reading against a key result.
type CheckIn struct {
	ID          string    `json:"id"`
	KeyResultID string    `json:"keyResultId"`
	Value       float64   `json:"value"`
	Confidence  int       `json:"confidence"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewID returns a fresh external id: millisecond timestamp plus a short
// random suffix. The timestamp prefix keeps ids roughly ordered, which
// makes debugging cross-store state much easier.
func NewID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
