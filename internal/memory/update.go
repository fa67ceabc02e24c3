package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/llm"
	"github.com/rcliao/tai/internal/model"
	"github.com/rcliao/tai/internal/prompt"
)

// UpdateGlobal asks historian for a full replacement of the global memory
// document in light of input. ok is false when the reply is not a valid entry
// list; such replies are dropped without error and the caller keeps its
// current global memory.
func (m *Manager) UpdateGlobal(ctx context.Context, historian llm.Model, input string) (entries []model.Entry, ok bool, err error) {
	current, err := m.Load(ctx, model.TierGlobal, m.now())
	if err != nil {
		return nil, false, err
	}
	template, err := m.Template(ctx)
	if err != nil {
		return nil, false, err
	}

	doc, err := json.MarshalIndent(current, "", strings.Repeat(" ", 4))
	if err != nil {
		return nil, false, fmt.Errorf("encode global memory: %w", err)
	}

	reply, err := historian.Generate(ctx, prompt.GlobalUpdate(string(doc), input, template, m.now()))
	if err != nil {
		return nil, false, fmt.Errorf("global memory update: %w", err)
	}

	var updated []model.Entry
	if err := json.Unmarshal([]byte(llm.CleanJSON(reply)), &updated); err != nil {
		m.log.Info("ignoring unparseable memory update", zap.Error(err))
		return nil, false, nil
	}
	if updated == nil {
		updated = []model.Entry{}
	}
	return updated, true, nil
}
