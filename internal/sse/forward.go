package sse

import (
	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/ledger"
)

// ForwardLedger broadcasts every change of l as "<kind>.<action>".
func ForwardLedger[R ledger.Record](b *Broker, kind string, l *ledger.Ledger[R]) (cancel func()) {
	return l.Subscribe(func(c ledger.Change[R]) {
		b.PublishChange(kind, string(c.Action), changeData(c), nil)
	})
}

// ForwardFinance broadcasts transaction changes together with the
// recomputed summary, and budget edits as "budget.updated".
func ForwardFinance(b *Broker, t *finance.Tracker) (cancel func()) {
	return t.Subscribe(func(u finance.Update) {
		if u.Change.Action == finance.ActionBudgetUpdated {
			b.PublishChange("budget", "updated", changeData(u.Change), u.Summary)
			return
		}
		b.PublishChange("transaction", string(u.Change.Action), changeData(u.Change), u.Summary)
	})
}

func changeData[R ledger.Record](c ledger.Change[R]) ChangeData {
	d := ChangeData{IDs: make([]string, len(c.IDs))}
	for i, id := range c.IDs {
		d.IDs[i] = id.String()
	}
	if c.Err != nil {
		d.Error = c.Err.Error()
	}
	return d
}
