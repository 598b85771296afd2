package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/stmtsync/internal/auth"
	"github.com/dmitrijs2005/stmtsync/internal/dbx"
	"github.com/dmitrijs2005/stmtsync/internal/fetch"
	"github.com/dmitrijs2005/stmtsync/internal/logging"
	"github.com/dmitrijs2005/stmtsync/internal/merchant"
	"github.com/dmitrijs2005/stmtsync/internal/paginate"
	"github.com/dmitrijs2005/stmtsync/internal/scheduler"
	"github.com/dmitrijs2005/stmtsync/internal/sink"
	"github.com/dmitrijs2005/stmtsync/internal/testutil"
	"github.com/stretchr/testify/require"
)

// statementServer imitates the statement API. Handlers are set per test;
// unset endpoints answer 404.
type statementServer struct {
	mu     sync.Mutex
	issued int
	// tokens numbered below minValid are rejected with 401
	minValid   int
	expireOnce bool
	hits       map[string]int

	payments           func(company, day, pageKey string) (any, int)
	paymentInstallment func(company, paymentID string) (any, int)
	sales              func(company, from, to, pageKey string) (any, int)
	saleInstallments   func(merchantID, nsu, saleDate string, call int) (any, int)
	receivables        func(company, from, to string) (any, int)
}

func (s *statementServer) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.issued++
		n := s.issued
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  fmt.Sprintf("tok-%d", n),
			"refresh_token": "refresh",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})

	api := func(name string, h func(r *http.Request) (any, int)) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !s.authorized(r) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			s.mu.Lock()
			s.hits[name]++
			s.mu.Unlock()

			body, status := h(r)
			writeJSON(w, status, body)
		}
	}

	mux.HandleFunc("GET /merchant-statement/v1/payments", api("payments", func(r *http.Request) (any, int) {
		if s.payments == nil {
			return nil, http.StatusNotFound
		}
		q := r.URL.Query()
		return s.payments(q.Get("parentCompanyNumber"), q.Get("startDate"), q.Get("pageKey"))
	}))
	mux.HandleFunc("GET /merchant-statement/v2/payments/installments/{company}/{payment}", api("payment-installments", func(r *http.Request) (any, int) {
		if s.paymentInstallment == nil {
			return nil, http.StatusNotFound
		}
		return s.paymentInstallment(r.PathValue("company"), r.PathValue("payment"))
	}))
	mux.HandleFunc("GET /merchant-statement/v2/sales", api("sales", func(r *http.Request) (any, int) {
		if s.sales == nil {
			return nil, http.StatusNotFound
		}
		q := r.URL.Query()
		return s.sales(q.Get("parentCompanyNumber"), q.Get("startDate"), q.Get("endDate"), q.Get("pageKey"))
	}))
	mux.HandleFunc("GET /merchant-statement/v2/payments/installments/{merchant}", api("sale-installments", func(r *http.Request) (any, int) {
		if s.saleInstallments == nil {
			return nil, http.StatusNotFound
		}
		q := r.URL.Query()
		key := r.PathValue("merchant") + "/" + q.Get("nsu")
		s.mu.Lock()
		s.hits[key]++
		call := s.hits[key]
		s.mu.Unlock()
		return s.saleInstallments(r.PathValue("merchant"), q.Get("nsu"), q.Get("saleDate"), call)
	}))
	mux.HandleFunc("GET /merchant-statement/v2/receivables/summary", api("receivables", func(r *http.Request) (any, int) {
		if s.receivables == nil {
			return nil, http.StatusNotFound
		}
		q := r.URL.Query()
		return s.receivables(q.Get("parentCompanyNumber"), q.Get("startDate"), q.Get("endDate"))
	}))

	return mux
}

func (s *statementServer) authorized(r *http.Request) bool {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer tok-")
	n, err := strconv.Atoi(token)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expireOnce {
		s.expireOnce = false
		s.minValid = s.issued + 1
	}
	return n >= s.minValid
}

func (s *statementServer) hit(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *statementServer) tokensIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func listing(field string, items []map[string]any, next string) map[string]any {
	body := map[string]any{"content": map[string]any{field: items}}
	if next != "" {
		body["cursor"] = map[string]any{"hasNextKey": true, "nextKey": next}
	}
	return body
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (m *memArchive) Put(_ context.Context, key string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func (m *memArchive) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k == key {
			return true
		}
	}
	return false
}

type harness struct {
	server  *statementServer
	db      *sql.DB
	deps    *Deps
	archive *memArchive
}

func newHarness(t *testing.T, companies ...string) *harness {
	t.Helper()

	srv := &statementServer{hits: map[string]int{}}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	logger := logging.Discard()
	tokens := auth.NewStore(&auth.HTTPIdentity{
		TokenURL: ts.URL + "/oauth/token",
		Username: "user",
		Password: "secret",
		Client:   ts.Client(),
	}, logger)

	client, err := fetch.NewClient(ts.Client(), tokens, fetch.Options{
		BaseURL:  ts.URL + "/",
		Timeout:  5 * time.Second,
		RetryMax: 2,
	}, logger)
	require.NoError(t, err)

	db := testutil.OpenSQLite(t)
	arch := &memArchive{}

	deps := &Deps{
		API:       merchant.NewAPI(client, paginate.New(client, paginate.Options{}), time.Second),
		Repo:      merchant.NewRepository(db, dbx.SQLite),
		Store:     sink.NewStore(db, dbx.SQLite, logger),
		Archive:   arch,
		Logger:    logger,
		Companies: companies,
		Batches:   BatchSizes{Payments: 5, Sales: 100, Installments: 150, Receivables: 50},
		Scheduler: scheduler.Options{MaxConcurrency: 3},
	}

	return &harness{server: srv, db: db, deps: deps, archive: arch}
}

func (h *harness) column(t *testing.T, query string, args ...any) []string {
	t.Helper()
	rows, err := h.db.Query(query, args...)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		require.NoError(t, rows.Scan(&s))
		out = append(out, s.String)
	}
	require.NoError(t, rows.Err())
	return out
}
