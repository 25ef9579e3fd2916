package state

import (
	"context"

	"github.com/cmoses01/DyaGram/internal/topology"
)

// Result values of a reconcile, also used as metric labels.
const (
	ResultBootstrap = "bootstrap"
	ResultUnchanged = "unchanged"
	ResultChanged   = "changed"
)

// Reconciliation is the comparison of a fresh snapshot with the baseline.
type Reconciliation struct {
	Result   string            `json:"result"`
	Changed  bool              `json:"changed"`
	Accepted bool              `json:"accepted"`
	Baseline topology.Snapshot `json:"baseline"`
	Current  topology.Snapshot `json:"current"`
	Diff     topology.Diff     `json:"diff"`
}

// Reconcile compares cur with the stored baseline for site. Without a
// baseline cur is saved as the first one. A changed snapshot replaces the
// baseline only when accept is set, so drift keeps being reported until it
// is acknowledged.
func Reconcile(ctx context.Context, store Store, site string, cur topology.Snapshot, accept bool) (Reconciliation, error) {
	baseline, ok, err := store.Load(ctx, site)
	if err != nil {
		return Reconciliation{}, err
	}
	if !ok {
		if err := store.Save(ctx, site, cur); err != nil {
			return Reconciliation{}, err
		}
		return Reconciliation{Result: ResultBootstrap, Accepted: true, Baseline: cur, Current: cur}, nil
	}

	diff := topology.Compare(baseline, cur)
	rec := Reconciliation{
		Result:   ResultUnchanged,
		Changed:  diff.Changed,
		Baseline: baseline,
		Current:  cur,
		Diff:     diff,
	}
	if !diff.Changed {
		return rec, nil
	}
	rec.Result = ResultChanged
	if accept {
		if err := store.Save(ctx, site, cur); err != nil {
			return Reconciliation{}, err
		}
		rec.Accepted = true
	}
	return rec, nil
}
