package outbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReplayService 提供重放失败 Outbox 事件的服务
type ReplayService struct {
	repo      *Repository
	publisher Publisher
	logger    *zap.Logger
}

// NewReplayService 创建新的 ReplayService
func NewReplayService(repo *Repository, publisher Publisher, logger *zap.Logger) *ReplayService {
	return &ReplayService{repo: repo, publisher: publisher, logger: logger}
}

// ReplayEvent 立即重放指定的事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := publishEvent(ctx, s.publisher, event); err != nil {
		// 重放失败不再自动重试
		if markErr := s.repo.MarkAsFailed(ctx, eventID, 1); markErr != nil {
			return fmt.Errorf("failed to publish and mark as failed: %w (mark error: %v)", err, markErr)
		}
		return err
	}

	return s.repo.MarkAsSent(ctx, eventID)
}

// ReplayFailedEvents 把失败的事件重置为 pending，交给 Dispatcher 重新发送
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to get failed events: %w", err)
	}

	reset := 0
	for _, event := range events {
		if err := s.repo.ResetForReplay(ctx, event.ID); err != nil {
			s.logger.Warn("Failed to reset outbox event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		reset++
	}
	return reset, nil
}
