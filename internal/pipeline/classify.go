package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"newswatcher/internal/classifier"
	"newswatcher/internal/model"
	"newswatcher/internal/storage"
)

// DefaultRecencyWindow bounds how old an item may be and still be eligible
// for classification.
const DefaultRecencyWindow = 4 * time.Hour

// ClassifySummary reports the outcome of one classification run.
type ClassifySummary struct {
	Processed    int
	Errors       int
	SkippedUsers int
}

// Notifier delivers a text message about a matched item.
type Notifier interface {
	Notify(chatID int64, text string)
}

// ClassifyJob evaluates eligible items against active task prompts and
// records a verdict per (item, task) pair.
type ClassifyJob struct {
	store    storage.Storage
	provider classifier.Provider
	window   time.Duration
	notifier Notifier
	log      *slog.Logger
}

// NewClassifyJob creates a ClassifyJob. The notifier is optional; when set,
// matched verdicts are pushed to the owning user's notification chat.
func NewClassifyJob(store storage.Storage, provider classifier.Provider, window time.Duration, notifier Notifier, log *slog.Logger) *ClassifyJob {
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	return &ClassifyJob{store: store, provider: provider, window: window, notifier: notifier, log: log}
}

// Run evaluates all eligible (item, task) pairs once. Users without a
// classifier credential are skipped, not errored. A failing pair is counted
// and left unprocessed so the next run retries it.
func (j *ClassifyJob) Run(ctx context.Context) ClassifySummary {
	var summary ClassifySummary

	users, err := j.store.ListUsers(ctx)
	if err != nil {
		j.log.Error("list users", "error", err)
		summary.Errors++
		return summary
	}

	for _, user := range users {
		if ctx.Err() != nil {
			return summary
		}
		cl, ok := j.provider.For(&user)
		if !ok {
			j.log.Warn("user has no classifier credential, skipping", "user_id", user.ID)
			summary.SkippedUsers++
			continue
		}

		tasks, err := j.store.ListActiveTasks(ctx, user.ID)
		if err != nil {
			j.log.Error("list active tasks", "user_id", user.ID, "error", err)
			summary.Errors++
			continue
		}

		for _, task := range tasks {
			processed, errors := j.processTask(ctx, cl, user, task)
			summary.Processed += processed
			summary.Errors += errors
		}
	}

	j.log.Info("classification run complete",
		"processed", summary.Processed, "errors", summary.Errors,
		"skipped_users", summary.SkippedUsers)
	return summary
}

func (j *ClassifyJob) processTask(ctx context.Context, cl classifier.Classifier, user model.User, task model.Task) (processed, errors int) {
	cutoff := time.Now().UTC().Add(-j.window)
	items, err := j.store.ListEligibleItems(ctx, task.ID, cutoff)
	if err != nil {
		j.log.Error("list eligible items", "task_id", task.ID, "error", err)
		return 0, 1
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return processed, errors
		}

		result, err := cl.Classify(ctx, task.Prompt, item.Title, item.Content)
		if err != nil {
			errors++
			j.log.Error("classify item", "item_id", item.ID, "task_id", task.ID, "error", err)
			continue
		}

		if err := j.saveVerdict(ctx, item.ID, task.ID, result); err != nil {
			errors++
			j.log.Error("save verdict", "item_id", item.ID, "task_id", task.ID, "error", err)
			continue
		}
		processed++

		j.log.Debug("item classified",
			"item_id", item.ID, "task_id", task.ID, "result", result.Matched)

		if result.Matched && j.notifier != nil && user.Settings.NotifyChatID != 0 {
			j.notifier.Notify(user.Settings.NotifyChatID, FormatMatch(task.Name, item, result.Thinking))
		}
	}
	return processed, errors
}

func (j *ClassifyJob) saveVerdict(ctx context.Context, itemID, taskID int64, result *classifier.Result) error {
	now := time.Now().UTC()
	response, err := json.Marshal(map[string]any{
		"thinking":     result.Thinking,
		"tokens_used":  result.TokensUsed,
		"processed_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	matched := result.Matched
	return j.store.SaveVerdict(ctx, &model.Verdict{
		ItemID:      itemID,
		TaskID:      taskID,
		Processed:   true,
		Result:      &matched,
		Response:    response,
		ProcessedAt: &now,
	})
}
