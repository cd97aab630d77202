// Package escalation selects and executes crisis response protocols: a
// condition-weighted matcher picks a protocol for an assessment, and an
// orchestrator runs the protocol's step list as a per-record state machine.
package escalation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/haven-crisis-platform/internal/risk"
)

// Priority orders protocols by urgency.
type Priority string

const (
	PriorityRoutine   Priority = "routine"
	PriorityUrgent    Priority = "urgent"
	PriorityEmergency Priority = "emergency"
)

// ConditionType names what an assessment field a trigger condition reads.
type ConditionType string

const (
	ConditionConfidence ConditionType = "confidence"
	ConditionSeverity   ConditionType = "severity"
	ConditionIndicator  ConditionType = "indicator"
	ConditionPattern    ConditionType = "pattern"
)

// Operator is the comparison applied by a trigger condition.
type Operator string

const (
	OpGT       Operator = "gt"
	OpGTE      Operator = "gte"
	OpLT       Operator = "lt"
	OpLTE      Operator = "lte"
	OpEQ       Operator = "eq"
	OpContains Operator = "contains"
)

// Action is what an escalation step does.
type Action string

const (
	ActionNotify    Action = "notify"
	ActionAssign    Action = "assign"
	ActionEscalate  Action = "escalate"
	ActionIntervene Action = "intervene"
	ActionAlert     Action = "alert"
)

// Target is who an escalation step acts on.
type Target string

const (
	TargetProfessional      Target = "professional"
	TargetSupervisor        Target = "supervisor"
	TargetEmergencyServices Target = "emergency_services"
	TargetCrisisTeam        Target = "crisis_team"
)

var severityRank = map[risk.Severity]int{
	risk.SeverityLow:      1,
	risk.SeverityMedium:   2,
	risk.SeverityHigh:     3,
	risk.SeverityCritical: 4,
}

// TriggerCondition is one weighted predicate over an assessment. Value is a
// string for all types; confidence conditions parse it as a float.
type TriggerCondition struct {
	Type     ConditionType `json:"type"`
	Operator Operator      `json:"operator"`
	Value    string        `json:"value"`
	Weight   float64       `json:"weight"`
}

// Satisfied evaluates the condition against an assessment.
func (c TriggerCondition) Satisfied(a *risk.Assessment) bool {
	switch c.Type {
	case ConditionConfidence:
		threshold, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return false
		}
		return compareFloat(a.Confidence, threshold, c.Operator)
	case ConditionSeverity:
		want, ok := severityRank[risk.Severity(c.Value)]
		if !ok {
			return false
		}
		return compareFloat(float64(severityRank[a.Severity]), float64(want), c.Operator)
	case ConditionIndicator:
		return a.Indicators.Has(c.Value)
	case ConditionPattern:
		for _, factor := range a.RiskFactors {
			if strings.Contains(factor, c.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func compareFloat(have, want float64, op Operator) bool {
	switch op {
	case OpGT:
		return have > want
	case OpGTE:
		return have >= want
	case OpLT:
		return have < want
	case OpLTE:
		return have <= want
	case OpEQ:
		return have == want
	default:
		return false
	}
}

// Step is one escalation action with its own timeout and at most one
// fallback. Fallbacks are single-hop: a fallback step may not itself carry a
// fallback, so step chains are short lists, never graphs.
type Step struct {
	ID       string            `json:"id"`
	Action   Action            `json:"action"`
	Target   Target            `json:"target"`
	Method   string            `json:"method,omitempty"`
	Timeout  time.Duration     `json:"timeout"`
	Fallback *Step             `json:"fallback,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the step shape, including the single-hop fallback rule.
func (s *Step) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("escalation: step id required")
	}
	switch s.Action {
	case ActionNotify, ActionAssign, ActionEscalate, ActionIntervene, ActionAlert:
	default:
		return fmt.Errorf("escalation: step %s: unknown action %q", s.ID, s.Action)
	}
	switch s.Target {
	case TargetProfessional, TargetSupervisor, TargetEmergencyServices, TargetCrisisTeam:
	default:
		return fmt.Errorf("escalation: step %s: unknown target %q", s.ID, s.Target)
	}
	// Zero means the orchestrator's default step timeout applies.
	if s.Timeout < 0 {
		return fmt.Errorf("escalation: step %s: negative timeout", s.ID)
	}
	if s.Fallback != nil {
		if s.Fallback.Fallback != nil {
			return fmt.Errorf("escalation: step %s: fallback may not have its own fallback", s.ID)
		}
		if err := s.Fallback.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Protocol is an escalation playbook. Immutable at run time; the catalog
// swaps whole protocols on admin update.
type Protocol struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Conditions     []TriggerCondition `json:"conditions"`
	Priority       Priority           `json:"priority"`
	TargetResponse time.Duration      `json:"target_response"`
	Path           []Step             `json:"path"`
	Compliance     []string           `json:"compliance,omitempty"`
	Active         bool               `json:"active"`
}

// Validate checks the protocol definition.
func (p *Protocol) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("escalation: protocol id required")
	}
	switch p.Priority {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency:
	default:
		return fmt.Errorf("escalation: protocol %s: unknown priority %q", p.ID, p.Priority)
	}
	if len(p.Conditions) == 0 {
		return fmt.Errorf("escalation: protocol %s: at least one condition required", p.ID)
	}
	var totalWeight float64
	for _, c := range p.Conditions {
		if c.Weight <= 0 {
			return fmt.Errorf("escalation: protocol %s: condition weights must be positive", p.ID)
		}
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return fmt.Errorf("escalation: protocol %s: total condition weight must be positive", p.ID)
	}
	if len(p.Path) == 0 {
		return fmt.Errorf("escalation: protocol %s: at least one step required", p.ID)
	}
	for i := range p.Path {
		if err := p.Path[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MatchScore is the fraction of condition weight the assessment satisfies.
func (p *Protocol) MatchScore(a *risk.Assessment) float64 {
	var total, satisfied float64
	for _, c := range p.Conditions {
		total += c.Weight
		if c.Satisfied(a) {
			satisfied += c.Weight
		}
	}
	if total == 0 {
		return 0
	}
	return satisfied / total
}
