package automation

import (
	"context"
	"fmt"

	"careops/internal/models"
	"careops/internal/notify"

	"github.com/google/uuid"
)

// LowStockKey is the dedup link for an item's low-stock alert. The
// scheduled sweep and the usage-recording path both use it, so the
// two can never raise separate unread alerts for one item.
func LowStockKey(itemID uuid.UUID) string {
	return "/dashboard/inventory?item=" + itemID.String()
}

// AlertOutcome describes what a low-stock check did for one item
type AlertOutcome struct {
	LowStock     bool           `json:"low_stock"`
	Alert        *models.Alert  `json:"alert,omitempty"`
	Created      bool           `json:"created"`
	Notification *notify.Result `json:"notification,omitempty"`
}

// CheckLowStockItems raises one unread alert for every item at or
// below its threshold that does not already have one
func (e *Engine) CheckLowStockItems(ctx context.Context) (Report, error) {
	ctx, span, report := e.startSweep(ctx, JobInventoryChecks)

	items, err := e.store.LowStockItems(ctx)
	if err != nil {
		e.finishSweep(span, report, err)
		return *report, err
	}
	report.Scanned = len(items)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		out, err := e.CheckItem(ctx, item)
		switch {
		case err != nil:
			e.log.Error().Err(err).Str("item_id", item.ID.String()).Msg("low stock check failed")
			report.Failed++
		case !out.Created:
			report.Skipped++
		default:
			report.Alerts++
			if n := out.Notification; n != nil {
				if n.OK() {
					report.Sent++
				} else {
					report.Failed++
				}
				if n.Demo {
					report.Demo++
				}
			}
		}
	}

	e.finishSweep(span, report, ctx.Err())
	return *report, ctx.Err()
}

// CheckItem applies the low-stock rule to one item. It re-reads the
// item so callers may pass a stale copy. The alert is committed before
// the vendor is notified and a failed notification does not remove it.
func (e *Engine) CheckItem(ctx context.Context, item models.InventoryItem) (AlertOutcome, error) {
	log := e.log.With().Str("item_id", item.ID.String()).Logger()

	fresh, err := e.store.InventoryItem(ctx, item.ID)
	if err != nil {
		if missing(err) {
			return AlertOutcome{}, nil
		}
		return AlertOutcome{}, fmt.Errorf("failed to reload item: %w", err)
	}
	if !fresh.IsLowStock() {
		return AlertOutcome{}, nil
	}

	alert := &models.Alert{
		WorkspaceID: fresh.WorkspaceID,
		Type:        models.AlertLowStock,
		Priority:    models.PriorityHigh,
		Title:       fmt.Sprintf("Low stock: %s", fresh.Name),
		Message: fmt.Sprintf("%s is running low: %d %s remaining (threshold %d)",
			fresh.Name, fresh.Quantity, fresh.Unit, fresh.LowStockThreshold),
		Link:      LowStockKey(fresh.ID),
		CreatedAt: e.clock.Now(),
	}
	created, err := e.store.CreateUnreadAlert(ctx, alert)
	if err != nil {
		return AlertOutcome{LowStock: true}, err
	}
	out := AlertOutcome{LowStock: true, Created: created}
	if !created {
		log.Debug().Msg("unread low stock alert already exists")
		return out, nil
	}
	out.Alert = alert
	log.Info().Int("quantity", fresh.Quantity).Int("threshold", fresh.LowStockThreshold).Msg("low stock alert created")

	if fresh.VendorEmail == "" {
		return out, nil
	}
	ws, err := e.store.Workspace(ctx, fresh.WorkspaceID)
	if err != nil && !missing(err) {
		log.Warn().Err(err).Msg("failed to load workspace for vendor notification")
	}

	n := e.notifiers.For(ctx, fresh.WorkspaceID)
	to, ok := n.ResolveRecipient(notify.VendorTarget(*fresh, ws))
	if !ok {
		log.Debug().Str("channel", string(n.Channel())).Msg("vendor not reachable on workspace channel")
		return out, nil
	}
	res := e.send(ctx, n, to, notify.LowStock(ws, *fresh), "low_stock")
	if !res.OK() {
		log.Warn().Str("reason", res.Reason).Msg("low stock notification not delivered")
	}
	out.Notification = &res
	return out, nil
}
