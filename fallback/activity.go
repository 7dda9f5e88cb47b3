package fallback

import (
	"context"
	"sort"
	"strings"

	"github.com/lborres/blogdesk/core"
)

var systemActor = core.Actor{ID: "system", Name: "System"}

func actorOf(ctx context.Context) core.Actor {
	if actor, ok := core.ActorFromContext(ctx); ok && actor.ID != "" {
		return actor
	}
	return systemActor
}

// ListActivity returns every entry, newest first. Entries are never pruned.
func (s *Store) ListActivity(ctx context.Context) ([]core.ActivityLogEntry, error) {
	s.mu.Lock()
	logs, err := load[core.ActivityLogEntry](ctx, s, KeyActivity)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Date.After(logs[j].Date) })
	if logs == nil {
		logs = []core.ActivityLogEntry{}
	}
	return logs, nil
}

// AppendActivity records a mutation performed elsewhere, such as on the
// remote backend, by the context actor.
func (s *Store) AppendActivity(ctx context.Context, action core.Action, kind core.EntityKind, name string) (*core.ActivityLogEntry, error) {
	if _, err := core.ParseAction(string(action)); err != nil {
		return nil, core.Invalid("appendActivity", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(ctx, action, kind, name)
}

func (s *Store) appendLocked(ctx context.Context, action core.Action, kind core.EntityKind, name string) (*core.ActivityLogEntry, error) {
	logs, err := load[core.ActivityLogEntry](ctx, s, KeyActivity)
	if err != nil {
		return nil, err
	}
	id, err := s.newID("log")
	if err != nil {
		return nil, err
	}

	actor := actorOf(ctx)
	entry := core.ActivityLogEntry{
		ID:         id,
		Date:       s.now(),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     action,
		EntityKind: kind,
		EntityName: strings.TrimSpace(name),
	}
	if err := s.save(ctx, KeyActivity, append(logs, entry)); err != nil {
		return nil, err
	}
	return &entry, nil
}
