package database

import (
	"context"
	"fmt"

	"textdigest/internal/domain"
)

// GetChatOptionsWithDefault returns the stored options of a chat, or the
// default options when the chat has none.
func (d *Database) GetChatOptionsWithDefault(
	ctx context.Context,
	chatID int64,
) (*domain.ChatOptions, error) {
	query := `select keywords_enabled, title_enabled, summary_length
	from chat_options
	where chat_id = ?`

	rows, err := d.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"chatID", chatID,
				"operation", "GetChatOptionsWithDefault")
		}
	}()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		return &domain.ChatOptions{
			ChatID:  chatID,
			Options: domain.DefaultOutputOptions(),
		}, nil
	}

	co := domain.ChatOptions{ChatID: chatID}
	if err = rows.Scan(
		&co.Options.KeywordsEnabled,
		&co.Options.TitleEnabled,
		&co.Options.SummaryLength,
	); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	co.Options = co.Options.Normalize()

	return &co, nil
}

func (d *Database) UpsertChatOptions(ctx context.Context, chatOptions *domain.ChatOptions) error {
	opts := chatOptions.Options.Normalize()

	query := `insert into chat_options (chat_id, keywords_enabled, title_enabled, summary_length)
	values (?, ?, ?, ?)
	on conflict (chat_id) do update
	set keywords_enabled = excluded.keywords_enabled,
		title_enabled = excluded.title_enabled,
		summary_length = excluded.summary_length,
		updated_at = current_timestamp`

	_, err := d.db.ExecContext(ctx, query,
		chatOptions.ChatID,
		opts.KeywordsEnabled,
		opts.TitleEnabled,
		opts.SummaryLength)

	return err
}

func (d *Database) DeleteChatOptions(ctx context.Context, chatID int64) error {
	query := "delete from chat_options where chat_id = ?"

	_, err := d.db.ExecContext(ctx, query, chatID)

	return err
}
