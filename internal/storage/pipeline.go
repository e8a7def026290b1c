package storage

import (
	"fmt"

	"github.com/vschool/agentsync/internal/session"
	"go.uber.org/zap"
)

// PipelineStats summarizes one resegmentation pass.
type PipelineStats struct {
	Conversations int
	Messages      int
	Reassigned    int
}

// Pipeline recomputes session assignments for every stored conversation.
// Segmentation is pure, so the pass is idempotent: running it twice over
// unchanged history reassigns nothing the second time.
type Pipeline struct {
	store  MessageStore
	logger *zap.Logger
}

func NewPipeline(store MessageStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: store, logger: logger}
}

func (p *Pipeline) Run() (PipelineStats, error) {
	var stats PipelineStats

	convs, err := p.store.ListConversations()
	if err != nil {
		return stats, fmt.Errorf("error listing conversations: %v", err)
	}

	for _, conv := range convs {
		msgs, err := p.store.ListMessages(conv.ID)
		if err != nil {
			return stats, fmt.Errorf("error listing messages for %s: %v", conv.ID, err)
		}
		stats.Conversations++
		stats.Messages += len(msgs)

		assignments := session.Segment(conv.ParticipantID, msgs, nil)

		changed := make(map[string]string)
		for _, m := range msgs {
			if want := assignments[m.ExternalID]; want != m.SessionID {
				changed[m.ExternalID] = want
			}
		}
		if len(changed) == 0 {
			continue
		}

		if err := p.store.UpdateSessionAssignments(conv.ID, changed); err != nil {
			return stats, fmt.Errorf("error writing session assignments for %s: %v", conv.ID, err)
		}
		stats.Reassigned += len(changed)
		p.logger.Info("Sessions reassigned",
			zap.String("conversation", conv.ID),
			zap.Int("messages", len(msgs)),
			zap.Int("reassigned", len(changed)))
	}

	return stats, nil
}
