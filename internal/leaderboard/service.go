// Package leaderboard provides the HTTP handlers for user balances,
// trade recording, the ranked leaderboard, and monthly winner snapshots.
//
// Every handler goes through the ledger store, so the whole read-modify-
// write of the persisted document happens under the global lock. WebSocket
// broadcasts fire after the lock is released.
package leaderboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fridgegames/leaderboard-engine/internal/metrics"
	"github.com/fridgegames/leaderboard-engine/internal/model"
	"github.com/fridgegames/leaderboard-engine/internal/rollover"
	"github.com/fridgegames/leaderboard-engine/internal/stats"
	"github.com/fridgegames/leaderboard-engine/internal/store"
)

const (
	defaultLeaderboardLimit = 100
	maxLeaderboardLimit     = 1000
)

// Service handles leaderboard operations against the ledger store.
type Service struct {
	ledger   *store.Ledger
	rollover *rollover.Controller
	hub      *Hub // optional, nil disables broadcasts
}

// NewService creates a service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(ledger *store.Ledger, ctrl *rollover.Controller, hub *Hub) *Service {
	return &Service{ledger: ledger, rollover: ctrl, hub: hub}
}

// --- Request/Response types ---

// UpdateUserRequest is the JSON body for POST /api/user/{userID}. Fields
// left out of the body — or sent as an explicit null, which JS clients
// emit for unset form fields — leave the record untouched; present
// non-null fields are coerced leniently (numeric strings parse, junk
// falls back to the field default).
type UpdateUserRequest struct {
	Nickname           *string         `json:"nickname"`
	Balance            json.RawMessage `json:"balance"`
	Trades             json.RawMessage `json:"trades"`
	Wins               json.RawMessage `json:"wins"`
	PeriodStartBalance json.RawMessage `json:"period_start_balance"`
}

// TradeRequest is the JSON body for POST /api/user/{userID}/trade.
type TradeRequest struct {
	Result string          `json:"result"` // "win" or "lose"
	Amount json.RawMessage `json:"amount"` // optional balance delta
}

// UserView is the merged stored-record-plus-metrics view returned by the
// user endpoints.
type UserView struct {
	UserID             string     `json:"user_id"`
	Nickname           string     `json:"nickname"`
	Balance            float64    `json:"balance"`
	Performance        float64    `json:"performance"`
	WinRate            float64    `json:"win_rate"`
	TradesThisPeriod   int        `json:"trades_this_period"`
	Wins               int        `json:"wins"`
	PeriodStartBalance float64    `json:"period_start_balance"`
	LastUpdate         *time.Time `json:"last_update"`
}

// LeaderboardRow is one ranked entry of GET /api/leaderboard.
type LeaderboardRow struct {
	UserID           string  `json:"user_id"`
	Nickname         string  `json:"nickname"`
	Balance          float64 `json:"balance"`
	Performance      float64 `json:"performance"`
	WinRate          float64 `json:"win_rate"`
	TradesThisPeriod int     `json:"trades_this_period"`
}

func userView(id string, u *model.UserRecord) UserView {
	m := stats.Compute(u)
	return UserView{
		UserID:             id,
		Nickname:           u.Nickname,
		Balance:            m.Balance,
		Performance:        m.Performance,
		WinRate:            m.WinRate,
		TradesThisPeriod:   m.TradesThisPeriod,
		Wins:               m.Wins,
		PeriodStartBalance: m.PeriodStartBalance,
		LastUpdate:         u.LastUpdate,
	}
}

// provided reports whether a request field carried a usable value. An
// absent field decodes to nil; an explicit null means "unset" too, so
// neither touches the record. Anything else does, junk included.
func provided(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// rankUsers returns every user as a leaderboard row, descending by
// balance. Rows enter the stable sort in lexicographic user-ID order, so
// equal balances rank deterministically.
func rankUsers(users map[string]*model.UserRecord) []LeaderboardRow {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]LeaderboardRow, 0, len(ids))
	for _, id := range ids {
		u := users[id]
		m := stats.Compute(u)
		rows = append(rows, LeaderboardRow{
			UserID:           id,
			Nickname:         u.Nickname,
			Balance:          m.Balance,
			Performance:      m.Performance,
			WinRate:          m.WinRate,
			TradesThisPeriod: m.TradesThisPeriod,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Balance > rows[j].Balance
	})
	return rows
}

// --- HTTP Handlers ---

// GetLeaderboard handles GET /api/leaderboard?limit=N
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit < 0 {
		limit = 0
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	var rows []LeaderboardRow
	err := s.ledger.View(r.Context(), func(doc *model.Document) error {
		rows = rankUsers(doc.Users)
		return nil
	})
	if err != nil {
		writeError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"leaderboard": rows,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetUser handles GET /api/user/{userID}. An unknown user gets a
// synthesized default view; nothing is persisted for it.
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	view := userView(userID, model.NewUserRecord())
	err := s.ledger.View(r.Context(), func(doc *model.Document) error {
		if u, ok := doc.Users[userID]; ok {
			view = userView(userID, u)
		}
		return nil
	})
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// UpdateUser handles POST /api/user/{userID}. It runs the automatic month
// rollover, applies the provided fields only, stamps last_update, and
// persists once.
func (s *Service) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var view UserView
	err := s.ledger.Update(r.Context(), func(doc *model.Document) (bool, error) {
		s.rollover.Apply(doc)

		u := doc.EnsureUser(userID)
		if req.Nickname != nil {
			u.Nickname = model.TruncateNickname(*req.Nickname)
		}
		if provided(req.Balance) {
			u.Balance = model.Round2(model.ParseMoney(req.Balance, model.StartBalance))
		}
		if provided(req.Trades) {
			u.Trades = model.ParseCount(req.Trades)
		}
		if provided(req.Wins) {
			u.Wins = model.ParseCount(req.Wins)
		}
		if provided(req.PeriodStartBalance) {
			u.PeriodStartBalance = model.Round2(model.ParseMoney(req.PeriodStartBalance, model.StartBalance))
		}
		now := time.Now().UTC()
		u.LastUpdate = &now

		view = userView(userID, u)
		metrics.UsersTracked.Set(float64(len(doc.Users)))
		return true, nil
	})
	if err != nil {
		writeError(w, "failed to update user", http.StatusInternalServerError)
		return
	}

	metrics.UserUpdatesTotal.Inc()
	slog.Info("user updated", "user", userID, "balance", view.Balance)

	if s.hub != nil {
		s.hub.Broadcast(Event{Type: "user_updated", UserID: userID, Balance: view.Balance})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "user": view})
}

// RecordTrade handles POST /api/user/{userID}/trade. The result must be
// "win" or "lose" (any case); anything else is rejected before the ledger
// is touched. This path does not run the month rollover.
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result := strings.ToLower(req.Result)
	if result != "win" && result != "lose" {
		writeError(w, `result must be "win" or "lose"`, http.StatusBadRequest)
		return
	}

	var view UserView
	err := s.ledger.Update(r.Context(), func(doc *model.Document) (bool, error) {
		u := doc.EnsureUser(userID)
		u.Trades++
		if result == "win" {
			u.Wins++
		}
		if req.Amount != nil {
			amount := decimal.NewFromFloat(model.ParseMoney(req.Amount, 0))
			balance := decimal.NewFromFloat(u.Balance)
			if result == "win" {
				balance = balance.Add(amount)
			} else {
				balance = balance.Sub(amount)
			}
			u.Balance = balance.Round(2).InexactFloat64()
		}
		now := time.Now().UTC()
		u.LastUpdate = &now

		view = userView(userID, u)
		metrics.UsersTracked.Set(float64(len(doc.Users)))
		return true, nil
	})
	if err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}

	metrics.TradesTotal.WithLabelValues(result).Inc()
	slog.Info("trade recorded",
		"user", userID,
		"result", result,
		"balance", view.Balance,
		"trades", view.TradesThisPeriod,
	)

	if s.hub != nil {
		s.hub.Broadcast(Event{Type: "trade_recorded", UserID: userID, Balance: view.Balance})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "user": view})
}

// CloseMonth handles POST /api/close_month, the manual rollover trigger.
// Closing a month that already has its snapshot is a no-op reported as
// "already_closed"; the stored entry is never recomputed.
func (s *Service) CloseMonth(w http.ResponseWriter, r *http.Request) {
	var res rollover.Result
	err := s.ledger.Update(r.Context(), func(doc *model.Document) (bool, error) {
		res = s.rollover.Close(doc)
		return !res.AlreadyClosed, nil
	})
	if err != nil {
		writeError(w, "failed to close month", http.StatusInternalServerError)
		return
	}

	if res.AlreadyClosed {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "already_closed",
			"month":  res.Month,
		})
		return
	}

	if len(res.Podium) > 0 {
		metrics.MonthsClosedTotal.Inc()
	}
	slog.Info("month closed", "month", res.Month, "podium_size", len(res.Podium))

	if s.hub != nil {
		s.hub.Broadcast(Event{Type: "month_closed", Month: res.Month})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "closed",
		"month":  res.Month,
		"podium": res.Podium,
	})
}

// GetWinners handles GET /api/winners/{month}.
func (s *Service) GetWinners(w http.ResponseWriter, r *http.Request) {
	month := chi.URLParam(r, "month")

	var entry *model.MonthlyWinners
	err := s.ledger.View(r.Context(), func(doc *model.Document) error {
		entry = doc.MonthlyWinners[month]
		return nil
	})
	if err != nil {
		writeError(w, "failed to load winners", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		writeError(w, "no winners recorded for "+month, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"month": month, "winners": entry})
}

// GetLatestWinners handles GET /api/winners: the lexicographically last
// closed month plus the full winners mapping, or a null latest when no
// month has ever closed.
func (s *Service) GetLatestWinners(w http.ResponseWriter, r *http.Request) {
	var latest string
	all := map[string]*model.MonthlyWinners{}
	err := s.ledger.View(r.Context(), func(doc *model.Document) error {
		for month, entry := range doc.MonthlyWinners {
			all[month] = entry
			if month > latest {
				latest = month
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, "failed to load winners", http.StatusInternalServerError)
		return
	}

	if latest == "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"latest":          nil,
			"monthly_winners": all,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"latest":          latest,
		"winners":         all[latest],
		"monthly_winners": all,
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
