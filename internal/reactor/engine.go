package reactor

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

// Handler applies one rule inside the caller's transaction.
type Handler func(ctx context.Context, tx *gorm.DB, ev Event, emit Emit) error

// Rule binds a handler to the events it reacts to. Emits lists every event
// type the handler may queue; the startup check and the dispatcher both rely
// on it being complete.
type Rule struct {
	Name   string
	On     []EventType
	Emits  []EventType
	Handle Handler
}

type ruleObserver interface {
	ObserveRule(rule string, err error)
}

// Engine runs the ordered rule table.
type Engine struct {
	rules   []Rule
	byEvent map[EventType][]int
	logg    *logger.Logger
	metrics ruleObserver
}

// New validates the rule table (unique names, handlers present, acyclic) and
// builds an engine. Rules fire in table order for each event.
func New(logg *logger.Logger, metrics ruleObserver, rules ...Rule) (*Engine, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	seen := make(map[string]struct{}, len(rules))
	byEvent := make(map[EventType][]int)
	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if _, dup := seen[rule.Name]; dup {
			return nil, fmt.Errorf("duplicate rule %q", rule.Name)
		}
		seen[rule.Name] = struct{}{}
		if rule.Handle == nil {
			return nil, fmt.Errorf("rule %q has no handler", rule.Name)
		}
		if len(rule.On) == 0 {
			return nil, fmt.Errorf("rule %q reacts to nothing", rule.Name)
		}
		for _, on := range rule.On {
			byEvent[on] = append(byEvent[on], i)
		}
	}
	if err := CheckAcyclic(rules); err != nil {
		return nil, err
	}
	return &Engine{
		rules:   rules,
		byEvent: byEvent,
		logg:    logg,
		metrics: metrics,
	}, nil
}

// Rules returns the table in firing order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Dispatch runs every rule bound to the given events, then every rule bound
// to the events those rules emit, breadth first. Any rule error aborts the
// whole dispatch so the caller's transaction rolls back.
func (e *Engine) Dispatch(ctx context.Context, tx *gorm.DB, events ...Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	queue := append([]Event(nil), events...)
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]
		for _, idx := range e.byEvent[ev.Type] {
			rule := e.rules[idx]
			var emitted []Event
			emit := func(next Event) {
				emitted = append(emitted, next)
			}
			err := rule.Handle(ctx, tx, ev, emit)
			if e.metrics != nil {
				e.metrics.ObserveRule(rule.Name, err)
			}
			if err != nil {
				return err
			}
			for _, next := range emitted {
				if !declares(rule, next.Type) {
					return pkgerrors.New(pkgerrors.CodeInternal, "rule emitted an undeclared event").
						WithDetails(map[string]any{"rule": rule.Name, "event": string(next.Type)})
				}
			}
			logCtx := e.logg.WithFields(ctx, map[string]any{
				"rule":       rule.Name,
				"event":      string(ev.Type),
				"vehicle_id": ev.VehicleID,
			})
			e.logg.Info(logCtx, "reactor rule applied")
			queue = append(queue, emitted...)
		}
	}
	return nil
}

func declares(rule Rule, t EventType) bool {
	for _, declared := range rule.Emits {
		if declared == t {
			return true
		}
	}
	return false
}
