package db

import "testing"

func TestDescribe(t *testing.T) {
	cases := []struct {
		sql, op, table string
	}{
		{"SELECT state FROM run_states WHERE email_id = $1", "select", "run_states"},
		{"\n\t\tINSERT INTO outbound_drafts (email_id) VALUES ($1)", "insert", "outbound_drafts"},
		{"UPDATE outbox_events SET status = 'sent'", "update", "outbox_events"},
		{"", "unknown", "unknown"},
	}
	for _, c := range cases {
		op, table := describe(c.sql)
		if op != c.op || table != c.table {
			t.Errorf("describe(%q) = %s,%s want %s,%s", c.sql, op, table, c.op, c.table)
		}
	}
}
