package escalation

import (
	"sync"
	"time"
)

// Catalog is the registry of escalation protocols. Registration order is
// preserved and doubles as the match tie-break, so the order protocols are
// registered in is part of the catalog's contract.
type Catalog struct {
	mu    sync.RWMutex
	byID  map[string]*Protocol
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]*Protocol)}
}

// Register validates and adds a protocol. An existing id is replaced in
// place, keeping its original position.
func (c *Catalog) Register(p *Protocol) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	cp := *p
	c.byID[p.ID] = &cp
	return nil
}

// Update is the admin operation for swapping a protocol definition at run
// time. Semantically identical to Register; kept separate so the admin
// surface is explicit.
func (c *Catalog) Update(p *Protocol) error {
	return c.Register(p)
}

// Get returns the protocol by id.
func (c *Catalog) Get(id string) (*Protocol, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// ListActive returns active protocols in registration order.
func (c *Catalog) ListActive() []*Protocol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Protocol, 0, len(c.order))
	for _, id := range c.order {
		if p := c.byID[id]; p.Active {
			out = append(out, p)
		}
	}
	return out
}

// DefaultCatalog returns the stock protocol set. Registration order matters:
// emergency first so it wins score ties against broader protocols.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, p := range []*Protocol{
		{
			ID:   "emergency-critical",
			Name: "Critical crisis response",
			Conditions: []TriggerCondition{
				{Type: ConditionSeverity, Operator: OpGTE, Value: "critical", Weight: 1},
			},
			Priority:       PriorityEmergency,
			TargetResponse: 5 * time.Minute,
			Compliance:     []string{"mandatory_report_review", "session_recording"},
			Path: []Step{
				{
					ID: "notify-crisis-team", Action: ActionNotify, Target: TargetCrisisTeam,
					Method: "sms", Timeout: 30 * time.Second,
					Fallback: &Step{
						ID: "alert-supervisor", Action: ActionAlert, Target: TargetSupervisor,
						Method: "email", Timeout: 30 * time.Second,
					},
				},
				{
					ID: "assign-crisis-professional", Action: ActionAssign, Target: TargetProfessional,
					Timeout: 2 * time.Minute,
					Fallback: &Step{
						ID: "escalate-emergency-services", Action: ActionEscalate, Target: TargetEmergencyServices,
						Timeout: time.Minute,
					},
				},
				{
					ID: "intervene-emergency-services", Action: ActionIntervene, Target: TargetEmergencyServices,
					Timeout: time.Minute,
					Metadata: map[string]string{"dispatch": "welfare_check"},
				},
			},
			Active: true,
		},
		{
			ID:   "urgent-high",
			Name: "High risk response",
			Conditions: []TriggerCondition{
				{Type: ConditionSeverity, Operator: OpGTE, Value: "high", Weight: 2},
				{Type: ConditionConfidence, Operator: OpGT, Value: "0.6", Weight: 1},
			},
			Priority:       PriorityUrgent,
			TargetResponse: 15 * time.Minute,
			Path: []Step{
				{
					ID: "assign-professional", Action: ActionAssign, Target: TargetProfessional,
					Timeout: 5 * time.Minute,
					Fallback: &Step{
						ID: "notify-supervisor", Action: ActionNotify, Target: TargetSupervisor,
						Method: "sms", Timeout: time.Minute,
					},
				},
				{
					ID: "notify-crisis-team", Action: ActionNotify, Target: TargetCrisisTeam,
					Method: "email", Timeout: time.Minute,
				},
			},
			Active: true,
		},
		{
			ID:   "domestic-violence-support",
			Name: "Domestic violence support path",
			Conditions: []TriggerCondition{
				{Type: ConditionIndicator, Operator: OpEQ, Value: "domestic_violence", Weight: 2},
				{Type: ConditionPattern, Operator: OpContains, Value: "lexical:", Weight: 1},
			},
			Priority:       PriorityUrgent,
			TargetResponse: 15 * time.Minute,
			Path: []Step{
				{
					ID: "assign-dv-advocate", Action: ActionAssign, Target: TargetProfessional,
					Timeout: 5 * time.Minute,
					Metadata: map[string]string{"specialty": "domestic_violence"},
					Fallback: &Step{
						ID: "notify-crisis-team", Action: ActionNotify, Target: TargetCrisisTeam,
						Method: "sms", Timeout: time.Minute,
					},
				},
			},
			Active: true,
		},
		{
			ID:   "routine-elevated",
			Name: "Elevated risk check-in",
			Conditions: []TriggerCondition{
				{Type: ConditionSeverity, Operator: OpEQ, Value: "medium", Weight: 2},
				{Type: ConditionConfidence, Operator: OpGT, Value: "0.3", Weight: 1},
			},
			Priority:       PriorityRoutine,
			TargetResponse: time.Hour,
			Path: []Step{
				{
					ID: "notify-crisis-team", Action: ActionNotify, Target: TargetCrisisTeam,
					Method: "email", Timeout: time.Minute,
				},
			},
			Active: true,
		},
	} {
		if err := c.Register(p); err != nil {
			panic(err)
		}
	}
	return c
}
