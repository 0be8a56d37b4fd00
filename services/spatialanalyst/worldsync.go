package spatialanalyst

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"multiverse-spatial/internal/eventbus"
	"multiverse-spatial/internal/scenegraph"
)

const (
	resultApplied = "applied"
	resultIgnored = "ignored"
	resultInvalid = "invalid"
)

// handleWorldEvent переносит изменения сущностей мира в граф сцены.
func (s *Service) handleWorldEvent(ev eventbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	result := s.applyWorldEvent(ctx, ev)
	s.metrics.WorldEvents.WithLabelValues(ev.EventType, result).Inc()
}

func (s *Service) applyWorldEvent(ctx context.Context, ev eventbus.Event) string {
	if ev.WorldID != s.cfg.WorldID || !ev.HasPrefix(eventbus.TypeEntity) {
		return resultIgnored
	}
	id := ev.EntityID()
	log := s.logger.With(zap.String("event_type", ev.EventType), zap.String("entity_id", id))
	if id == "" {
		log.Warn("world event without entity id")
		return resultInvalid
	}

	switch ev.EventType {
	case eventbus.EventEntityDeleted:
		if err := s.removeNode(ctx, id); err != nil {
			if errors.Is(err, scenegraph.ErrNodeNotFound) {
				return resultIgnored
			}
			log.Warn("node removal failed", zap.Error(err))
			return resultInvalid
		}
		log.Debug("node removed")
		return resultApplied

	case eventbus.EventEntityMoved:
		n, err := s.movedNode(id, ev)
		if err != nil {
			log.Warn("entity move rejected", zap.Error(err))
			return resultInvalid
		}
		return s.storeEntity(ctx, log, n)

	case eventbus.EventEntityCreated, eventbus.EventEntityUpdated:
		n, err := scenegraph.FromEntityPayload(id, ev.EntityType(), ev.EntityState())
		if err != nil {
			log.Warn("entity payload rejected", zap.Error(err))
			return resultInvalid
		}
		if ev.EventType == eventbus.EventEntityUpdated {
			s.mergeTags(n)
		}
		return s.storeEntity(ctx, log, n)

	default:
		return resultIgnored
	}
}

// movedNode сдвигает известный узел; неизвестная сущность строится из
// полезной нагрузки целиком.
func (s *Service) movedNode(id string, ev eventbus.Event) (*scenegraph.Node, error) {
	state := ev.EntityState()
	current, ok := s.graph.Node(id)
	if !ok {
		return scenegraph.FromEntityPayload(id, ev.EntityType(), state)
	}
	pos, ok := scenegraph.EntityPosition(state)
	if !ok {
		return nil, scenegraph.ErrInvalidNode
	}
	n := current.Clone()
	n.Coordinates = pos
	if vel, ok := scenegraph.EntityVelocity(state); ok {
		n.State.Velocity = vel
	}
	return n, nil
}

// mergeTags сохраняет теги известного узла, которых нет в обновлении.
func (s *Service) mergeTags(n *scenegraph.Node) {
	current, ok := s.graph.Node(n.ID)
	if !ok {
		return
	}
	tags := current.Tags.Clone()
	tags.Merge(n.Tags)
	n.Tags = tags
}

func (s *Service) storeEntity(ctx context.Context, log *zap.Logger, n *scenegraph.Node) string {
	if err := s.upsertNode(ctx, n); err != nil {
		log.Warn("node upsert failed", zap.Error(err))
		return resultInvalid
	}
	log.Debug("node stored", zap.String("node_type", string(n.Type)))

	// Отчёт об угрозах игрока пересчитывается при каждом его изменении.
	if n.Type == scenegraph.TypePlayer {
		if _, err := s.assessThreat(ctx, n.ID); err != nil {
			log.Warn("threat assessment failed", zap.Error(err))
		}
	}
	return resultApplied
}
