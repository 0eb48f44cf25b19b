// Package podium ranks users by balance for monthly winner snapshots.
package podium

import (
	"sort"

	"github.com/fridgegames/leaderboard-engine/internal/model"
)

// DefaultSize is the number of podium places in a monthly snapshot.
const DefaultSize = 3

// Compute returns the top n users by balance as ranked podium entries.
//
// Records enter the sort in lexicographic user-ID order and the sort is
// stable, so equal balances rank deterministically (lower user ID first).
// Positions run 1..k with k = min(n, user count); an empty user map
// yields nil.
func Compute(users map[string]*model.UserRecord, n int) []model.PodiumEntry {
	if n <= 0 || len(users) == 0 {
		return nil
	}

	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type row struct {
		id      string
		nick    string
		balance float64
	}
	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		u := users[id]
		rows = append(rows, row{id: id, nick: u.Nickname, balance: u.Balance})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].balance > rows[j].balance
	})

	if len(rows) > n {
		rows = rows[:n]
	}

	entries := make([]model.PodiumEntry, len(rows))
	for i, r := range rows {
		entries[i] = model.PodiumEntry{
			Position: i + 1,
			UserID:   r.id,
			Nickname: r.nick,
			Balance:  model.Round2(r.balance),
		}
	}
	return entries
}
