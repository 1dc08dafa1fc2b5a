package identity

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// DefaultPurgeAge is how old a provisional account must be before purging.
const DefaultPurgeAge = 7 * 24 * time.Hour

type PurgeStaleMessage struct {
	OlderThan  time.Duration
	DryRun     bool
	OnResponse func(resp *PurgeStaleResponse)
}

func (e PurgeStaleMessage) Type() string { return "maintenance.purge_stale" }

type PurgeStaleResponse struct {
	Accounts         []*EndUser
	PreRegistrations int
	Tokens           int
	DryRun           bool
}

// PurgeStaleHandler deletes provisional end-users that never completed their
// profile, expired pre-registrations and expired tokens.
type PurgeStaleHandler struct {
	handlerBase
}

func NewPurgeStaleHandler(repo RepositoryManager, opts ...HandlerOption) *PurgeStaleHandler {
	return &PurgeStaleHandler{
		handlerBase: newHandlerBase("identity.purge", repo, opts),
	}
}

func (h *PurgeStaleHandler) Execute(ctx context.Context, event PurgeStaleMessage) error {
	ctx, cancel, err := h.guard(ctx, "stale account purge")
	defer cancel()
	if err != nil {
		return err
	}

	err = h.execute(ctx, event)
	h.observe(flowPurge, err)
	return err
}

func (h *PurgeStaleHandler) execute(ctx context.Context, event PurgeStaleMessage) error {
	olderThan := event.OlderThan
	if olderThan <= 0 {
		olderThan = DefaultPurgeAge
	}

	now := h.now()
	cutoff := now.Add(-olderThan)
	resp := &PurgeStaleResponse{DryRun: event.DryRun}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		resp.Accounts, err = h.repo.Users().ListStaleTx(ctx, tx, cutoff)
		if err != nil {
			return err
		}

		if event.DryRun {
			return nil
		}

		ids := make([]string, 0, len(resp.Accounts))
		for _, u := range resp.Accounts {
			ids = append(ids, u.ID)
		}

		if err := h.repo.Users().DeleteTx(ctx, tx, ids...); err != nil {
			return err
		}

		if resp.PreRegistrations, err = h.repo.PreRegistrations().DeleteExpiredTx(ctx, tx, now); err != nil {
			return err
		}

		resp.Tokens, err = h.repo.Tokens().DeleteExpiredTx(ctx, tx, now)
		return err
	})

	if err != nil {
		return asRichError(err, "failed to purge stale accounts")
	}

	h.logger.Info("purged stale accounts",
		"accounts", len(resp.Accounts),
		"pre_registrations", resp.PreRegistrations,
		"tokens", resp.Tokens,
		"dry_run", resp.DryRun,
	)

	if !event.DryRun {
		h.record(ctx, ActivityEvent{
			EventType: ActivityEventStaleAccountsPurged,
			Metadata: map[string]any{
				"accounts":          len(resp.Accounts),
				"pre_registrations": resp.PreRegistrations,
				"tokens":            resp.Tokens,
				"cutoff":            cutoff,
			},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
