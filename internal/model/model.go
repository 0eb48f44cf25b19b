// Package model defines the persisted ledger document and the domain types
// shared across the leaderboard engine.
//
// Balances are plain JSON numbers on disk and on the wire, matching the
// data file format the service has always produced. All arithmetic on them
// routes through shopspring/decimal so cent rounding stays exact.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// StartBalance is the balance granted to every user on first contact.
// It doubles as the fallback when a stored balance cannot be parsed.
const StartBalance = 5000.00

// MaxNicknameLen is the rune limit applied to nicknames on every write.
const MaxNicknameLen = 40

// UserRecord is the persisted per-user aggregate state. Only counters and
// the current balance are kept; individual trades are not recorded.
type UserRecord struct {
	Nickname           string     `json:"nickname"`
	Balance            float64    `json:"balance"`
	LastUpdate         *time.Time `json:"last_update"`
	Trades             int        `json:"trades"`
	Wins               int        `json:"wins"`
	PeriodStartBalance float64    `json:"period_start_balance"`
}

// NewUserRecord returns a record with the starting balance and zeroed
// counters. LastUpdate stays nil until the first write.
func NewUserRecord() *UserRecord {
	return &UserRecord{
		Balance:            StartBalance,
		PeriodStartBalance: StartBalance,
	}
}

// UnmarshalJSON decodes a stored user record leniently. Each scalar field
// is parsed with a default-on-failure helper: numbers and numeric strings
// parse normally, while null, absent, or malformed values fall back to the
// field default. A record that is not a JSON object at all still fails,
// which surfaces as a malformed document on the next load.
func (u *UserRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nickname           json.RawMessage `json:"nickname"`
		Balance            json.RawMessage `json:"balance"`
		LastUpdate         json.RawMessage `json:"last_update"`
		Trades             json.RawMessage `json:"trades"`
		Wins               json.RawMessage `json:"wins"`
		PeriodStartBalance json.RawMessage `json:"period_start_balance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	u.Nickname = parseText(raw.Nickname)
	u.Balance = ParseMoney(raw.Balance, StartBalance)
	u.LastUpdate = parseTime(raw.LastUpdate)
	u.Trades = ParseCount(raw.Trades)
	u.Wins = ParseCount(raw.Wins)
	u.PeriodStartBalance = ParseMoney(raw.PeriodStartBalance, StartBalance)
	return nil
}

// PodiumEntry is one ranked row of a podium snapshot.
type PodiumEntry struct {
	Position int     `json:"position"`
	UserID   string  `json:"user_id"`
	Nickname string  `json:"nickname"`
	Balance  float64 `json:"balance"`
}

// MonthlyWinners is the podium snapshot recorded when a calendar month
// closes. Once written under its month key it is never modified.
type MonthlyWinners struct {
	Podium   []PodiumEntry `json:"podium"`
	ClosedAt time.Time     `json:"closed_at"`
}

// Document is the root aggregate holding all persisted state. Every
// mutation loads the full document, changes it in memory, and writes the
// full document back.
type Document struct {
	Users          map[string]*UserRecord     `json:"users"`
	MonthlyWinners map[string]*MonthlyWinners `json:"monthly_winners"`

	// LastMonthClosed records the month key of the most recent rollover
	// evaluation. It only short-circuits repeated checks within the same
	// month; membership in MonthlyWinners is the real idempotence guard.
	LastMonthClosed string `json:"last_month_closed"`
}

// NewDocument returns an empty document with initialized maps.
func NewDocument() *Document {
	return &Document{
		Users:          make(map[string]*UserRecord),
		MonthlyWinners: make(map[string]*MonthlyWinners),
	}
}

// UnmarshalJSON decodes a document and re-initializes any map that was
// stored as null so callers can insert without nil checks.
func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Document(a)
	if d.Users == nil {
		d.Users = make(map[string]*UserRecord)
	}
	if d.MonthlyWinners == nil {
		d.MonthlyWinners = make(map[string]*MonthlyWinners)
	}
	return nil
}

// EnsureUser returns the record for id, inserting a defaulted one when the
// user has never been written. It does not persist; the enclosing mutation
// saves the document once at the end.
func (d *Document) EnsureUser(id string) *UserRecord {
	if u, ok := d.Users[id]; ok {
		return u
	}
	u := NewUserRecord()
	d.Users[id] = u
	return u
}

// Round2 rounds a currency value to 2 decimal places through decimal
// arithmetic, so cents round the same way regardless of the binary
// representation of the input.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// TruncateNickname clips a nickname to MaxNicknameLen runes.
func TruncateNickname(s string) string {
	r := []rune(s)
	if len(r) <= MaxNicknameLen {
		return s
	}
	return string(r[:MaxNicknameLen])
}

// --- Lenient field parsers ---
//
// These back both stored-record decoding and the write endpoints, which
// accept the same sloppy scalars the data file may contain.

// ParseMoney interprets a JSON scalar as a currency amount. Numbers and
// numeric strings both parse; null, absent, or malformed values yield def.
func ParseMoney(raw json.RawMessage, def float64) float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return def
	}
	return d.InexactFloat64()
}

// ParseCount interprets a JSON scalar as an integer counter, truncating
// fractional values toward zero. Malformed values yield 0.
func ParseCount(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return 0
	}
	return int(d.IntPart())
}

func parseText(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func parseTime(raw json.RawMessage) *time.Time {
	var t time.Time
	if len(raw) == 0 || json.Unmarshal(raw, &t) != nil {
		return nil
	}
	return &t
}
