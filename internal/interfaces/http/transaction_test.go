package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"centavo/internal/domain/account"
	"centavo/internal/domain/category"
	"centavo/internal/domain/ledger"
)

// MockLedgerRepo implements ledger.Repository for testing
type MockLedgerRepo struct {
	InsertFunc          func(ctx context.Context, p *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error
	InsertPairFunc      func(ctx context.Context, budgetLeg, transferLeg *ledger.Posting, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error
	SupersedeFunc       func(ctx context.Context, expectedVersionID uuid.UUID, replacement *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error
	DeactivateFunc      func(ctx context.Context, conceptID uuid.UUID, expectedVersionIDs []uuid.UUID, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error
	ActiveByConceptFunc func(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error)
	VersionsFunc        func(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error)
	ListByAccountFunc   func(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Posting, error)
}

func (m *MockLedgerRepo) Insert(ctx context.Context, p *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, p, accountDelta, monthlyDeltas)
	}
	return nil
}

func (m *MockLedgerRepo) InsertPair(ctx context.Context, budgetLeg, transferLeg *ledger.Posting, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	if m.InsertPairFunc != nil {
		return m.InsertPairFunc(ctx, budgetLeg, transferLeg, accountDeltas, monthlyDeltas)
	}
	return nil
}

func (m *MockLedgerRepo) Supersede(ctx context.Context, expectedVersionID uuid.UUID, replacement *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	if m.SupersedeFunc != nil {
		return m.SupersedeFunc(ctx, expectedVersionID, replacement, accountDelta, monthlyDeltas)
	}
	return nil
}

func (m *MockLedgerRepo) Deactivate(ctx context.Context, conceptID uuid.UUID, expectedVersionIDs []uuid.UUID, accountDeltas []ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
	if m.DeactivateFunc != nil {
		return m.DeactivateFunc(ctx, conceptID, expectedVersionIDs, accountDeltas, monthlyDeltas)
	}
	return nil
}

func (m *MockLedgerRepo) ActiveByConcept(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error) {
	if m.ActiveByConceptFunc != nil {
		return m.ActiveByConceptFunc(ctx, conceptID)
	}
	return nil, nil
}

func (m *MockLedgerRepo) Versions(ctx context.Context, conceptID uuid.UUID) ([]*ledger.Posting, error) {
	if m.VersionsFunc != nil {
		return m.VersionsFunc(ctx, conceptID)
	}
	return nil, nil
}

func (m *MockLedgerRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Posting, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit, offset)
	}
	return nil, nil
}

// MockAccountDirectory implements the account lookup the services need.
// The zero value resolves every id to an active account.
type MockAccountDirectory struct {
	GetFunc func(ctx context.Context, accountID string) (*account.Account, error)
}

func (m *MockAccountDirectory) Get(ctx context.Context, accountID string) (*account.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, accountID)
	}
	return &account.Account{AccountID: accountID, IsActive: true}, nil
}

// MockCategoryDirectory implements the category lookup the services need.
// The zero value resolves every id to an active category.
type MockCategoryDirectory struct {
	GetCategoryFunc func(ctx context.Context, categoryID string) (*category.Category, error)
}

func (m *MockCategoryDirectory) GetCategory(ctx context.Context, categoryID string) (*category.Category, error) {
	if m.GetCategoryFunc != nil {
		return m.GetCategoryFunc(ctx, categoryID)
	}
	return &category.Category{CategoryID: categoryID, IsActive: true}, nil
}

func newTransactionHandler(repo *MockLedgerRepo, accounts *MockAccountDirectory, categories *MockCategoryDirectory) *TransactionHandler {
	svc := ledger.NewService(repo, accounts, categories, 5, zerolog.Nop())
	return NewTransactionHandler(svc, zerolog.Nop())
}

func TestHandleTransactions_PostTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]interface{}
		mockRepo       func() *MockLedgerRepo
		mockAccounts   func() *MockAccountDirectory
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]interface{}{
				"accountId":   "checking",
				"categoryId":  "groceries",
				"amountMinor": -4500,
				"date":        "2026-08-10",
			},
			mockRepo:       func() *MockLedgerRepo { return &MockLedgerRepo{} },
			mockAccounts:   func() *MockAccountDirectory { return &MockAccountDirectory{} },
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Zero Amount",
			body: map[string]interface{}{
				"accountId":   "checking",
				"categoryId":  "groceries",
				"amountMinor": 0,
				"date":        "2026-08-10",
			},
			mockRepo:       func() *MockLedgerRepo { return &MockLedgerRepo{} },
			mockAccounts:   func() *MockAccountDirectory { return &MockAccountDirectory{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid Date",
			body: map[string]interface{}{
				"accountId":   "checking",
				"categoryId":  "groceries",
				"amountMinor": -4500,
				"date":        "10/08/2026",
			},
			mockRepo:       func() *MockLedgerRepo { return &MockLedgerRepo{} },
			mockAccounts:   func() *MockAccountDirectory { return &MockAccountDirectory{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Unknown Account",
			body: map[string]interface{}{
				"accountId":   "nope",
				"categoryId":  "groceries",
				"amountMinor": -4500,
				"date":        "2026-08-10",
			},
			mockRepo: func() *MockLedgerRepo { return &MockLedgerRepo{} },
			mockAccounts: func() *MockAccountDirectory {
				return &MockAccountDirectory{
					GetFunc: func(ctx context.Context, accountID string) (*account.Account, error) {
						return nil, account.ErrAccountNotFound
					},
				}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Duplicate Concept",
			body: map[string]interface{}{
				"conceptId":   uuid.NewString(),
				"accountId":   "checking",
				"categoryId":  "groceries",
				"amountMinor": -4500,
				"date":        "2026-08-10",
			},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					InsertFunc: func(ctx context.Context, p *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
						return ledger.ErrConflictingEdit
					},
				}
			},
			mockAccounts:   func() *MockAccountDirectory { return &MockAccountDirectory{} },
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTransactionHandler(tt.mockRepo(), tt.mockAccounts(), &MockCategoryDirectory{})

			bodyBytes, _ := json.Marshal(tt.body)
			req, _ := http.NewRequest(http.MethodPost, "/api/transactions", bytes.NewBuffer(bodyBytes))

			rr := httptest.NewRecorder()
			handler.HandleTransactions(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}

			if tt.expectedStatus == http.StatusCreated {
				var resp PostingResponse
				json.NewDecoder(rr.Body).Decode(&resp)
				if resp.Status != "pending" {
					t.Errorf("status defaulted to %q, want %q", resp.Status, "pending")
				}
				if resp.Date != "2026-08-10" {
					t.Errorf("date = %q, want %q", resp.Date, "2026-08-10")
				}
				if resp.ConceptID == "" || resp.VersionID == "" {
					t.Error("expected generated concept and version ids")
				}
			}
		})
	}
}

func TestHandleTransactions_ListTransactions(t *testing.T) {
	repo := &MockLedgerRepo{
		ListByAccountFunc: func(ctx context.Context, accountID string, limit, offset int) ([]*ledger.Posting, error) {
			return []*ledger.Posting{
				{VersionID: uuid.New(), ConceptID: uuid.New(), AccountID: accountID, CategoryID: "groceries", AmountMinor: -4500, Status: ledger.StatusCleared},
				{VersionID: uuid.New(), ConceptID: uuid.New(), AccountID: accountID, CategoryID: "rent", AmountMinor: -90000, Status: ledger.StatusPending},
			}, nil
		},
	}
	handler := newTransactionHandler(repo, &MockAccountDirectory{}, &MockCategoryDirectory{})

	req, _ := http.NewRequest(http.MethodGet, "/api/transactions?accountId=checking", nil)
	rr := httptest.NewRecorder()
	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var postings []PostingResponse
	json.NewDecoder(rr.Body).Decode(&postings)
	if len(postings) != 2 {
		t.Errorf("response length = %d, want 2", len(postings))
	}
}

func TestHandleTransactions_ListRequiresAccountID(t *testing.T) {
	handler := newTransactionHandler(&MockLedgerRepo{}, &MockAccountDirectory{}, &MockCategoryDirectory{})

	req, _ := http.NewRequest(http.MethodGet, "/api/transactions", nil)
	rr := httptest.NewRecorder()
	handler.HandleTransactions(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleTransactionByID_Amend(t *testing.T) {
	conceptID := uuid.New()
	versionID := uuid.New()
	active := func() []*ledger.Posting {
		return []*ledger.Posting{{
			VersionID:   versionID,
			ConceptID:   conceptID,
			AccountID:   "checking",
			CategoryID:  "groceries",
			AmountMinor: -4500,
			Status:      ledger.StatusCleared,
			IsActive:    true,
		}}
	}

	tests := []struct {
		name           string
		body           map[string]interface{}
		mockRepo       func() *MockLedgerRepo
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]interface{}{"amountMinor": -5000},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					ActiveByConceptFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
						return active(), nil
					},
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "No Changes",
			body: map[string]interface{}{},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Concept Not Found",
			body: map[string]interface{}{"amountMinor": -5000},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Already Retired",
			body: map[string]interface{}{"amountMinor": -5000},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					VersionsFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
						return active(), nil
					},
				}
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Transfer Leg",
			body: map[string]interface{}{"amountMinor": -5000},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					ActiveByConceptFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
						return append(active(), active()...), nil
					},
				}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Lost Race",
			body: map[string]interface{}{"amountMinor": -5000},
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					ActiveByConceptFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
						return active(), nil
					},
					SupersedeFunc: func(ctx context.Context, expectedVersionID uuid.UUID, replacement *ledger.Posting, accountDelta ledger.AccountDelta, monthlyDeltas []ledger.MonthlyDelta) error {
						return ledger.ErrConflictingEdit
					},
				}
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTransactionHandler(tt.mockRepo(), &MockAccountDirectory{}, &MockCategoryDirectory{})

			mux := http.NewServeMux()
			mux.HandleFunc("PUT /api/transactions/{id}", handler.HandleTransactionByID)

			bodyBytes, _ := json.Marshal(tt.body)
			req, _ := http.NewRequest(http.MethodPut, "/api/transactions/"+conceptID.String(), bytes.NewBuffer(bodyBytes))

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}

			if tt.expectedStatus == http.StatusOK {
				var resp PostingResponse
				json.NewDecoder(rr.Body).Decode(&resp)
				if resp.AmountMinor != -5000 {
					t.Errorf("amount = %d, want -5000", resp.AmountMinor)
				}
				if resp.VersionID == versionID.String() {
					t.Error("amendment must mint a new version id")
				}
				if resp.ConceptID != conceptID.String() {
					t.Errorf("concept = %s, want %s", resp.ConceptID, conceptID)
				}
			}
		})
	}
}

func TestHandleTransactionByID_Retire(t *testing.T) {
	conceptID := uuid.New()

	tests := []struct {
		name           string
		mockRepo       func() *MockLedgerRepo
		expectedStatus int
	}{
		{
			name: "Success",
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{
					ActiveByConceptFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
						return []*ledger.Posting{{VersionID: uuid.New(), ConceptID: id, AccountID: "checking", CategoryID: "groceries", AmountMinor: -4500, IsActive: true}}, nil
					},
				}
			},
			expectedStatus: http.StatusNoContent,
		},
		{
			name: "Not Found",
			mockRepo: func() *MockLedgerRepo {
				return &MockLedgerRepo{}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTransactionHandler(tt.mockRepo(), &MockAccountDirectory{}, &MockCategoryDirectory{})

			mux := http.NewServeMux()
			mux.HandleFunc("DELETE /api/transactions/{id}", handler.HandleTransactionByID)

			req, _ := http.NewRequest(http.MethodDelete, "/api/transactions/"+conceptID.String(), nil)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandleTransactionByID_InvalidConceptID(t *testing.T) {
	handler := newTransactionHandler(&MockLedgerRepo{}, &MockAccountDirectory{}, &MockCategoryDirectory{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions/{id}", handler.HandleTransactionByID)

	req, _ := http.NewRequest(http.MethodGet, "/api/transactions/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHandleTransactionVersions(t *testing.T) {
	conceptID := uuid.New()
	repo := &MockLedgerRepo{
		VersionsFunc: func(ctx context.Context, id uuid.UUID) ([]*ledger.Posting, error) {
			return []*ledger.Posting{
				{VersionID: uuid.New(), ConceptID: id, AmountMinor: -5000, IsActive: true},
				{VersionID: uuid.New(), ConceptID: id, AmountMinor: -4500, IsActive: false},
			}, nil
		},
	}
	handler := newTransactionHandler(repo, &MockAccountDirectory{}, &MockCategoryDirectory{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/transactions/{id}/versions", handler.HandleTransactionVersions)

	req, _ := http.NewRequest(http.MethodGet, "/api/transactions/"+conceptID.String()+"/versions", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var versions []PostingResponse
	json.NewDecoder(rr.Body).Decode(&versions)
	if len(versions) != 2 {
		t.Errorf("response length = %d, want 2", len(versions))
	}
	if !versions[0].IsActive || versions[1].IsActive {
		t.Error("expected the newest version active and the older one inactive")
	}
}

func TestHandleTransfers(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]interface{}{
				"fromAccountId": "checking",
				"toAccountId":   "savings",
				"amountMinor":   10000,
				"date":          "2026-08-10",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Same Account",
			body: map[string]interface{}{
				"fromAccountId": "checking",
				"toAccountId":   "checking",
				"amountMinor":   10000,
				"date":          "2026-08-10",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Negative Amount",
			body: map[string]interface{}{
				"fromAccountId": "checking",
				"toAccountId":   "savings",
				"amountMinor":   -10000,
				"date":          "2026-08-10",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTransactionHandler(&MockLedgerRepo{}, &MockAccountDirectory{}, &MockCategoryDirectory{})

			bodyBytes, _ := json.Marshal(tt.body)
			req, _ := http.NewRequest(http.MethodPost, "/api/transfers", bytes.NewBuffer(bodyBytes))

			rr := httptest.NewRecorder()
			handler.HandleTransfers(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.expectedStatus, rr.Body.String())
			}

			if tt.expectedStatus == http.StatusCreated {
				var resp TransferResponse
				json.NewDecoder(rr.Body).Decode(&resp)
				if resp.BudgetLeg.AmountMinor != -10000 {
					t.Errorf("budget leg amount = %d, want -10000", resp.BudgetLeg.AmountMinor)
				}
				if resp.TransferLeg.AmountMinor != 10000 {
					t.Errorf("transfer leg amount = %d, want 10000", resp.TransferLeg.AmountMinor)
				}
				if resp.TransferLeg.CategoryID != category.TransferCategoryID {
					t.Errorf("transfer leg category = %q, want %q", resp.TransferLeg.CategoryID, category.TransferCategoryID)
				}
				if resp.BudgetLeg.ConceptID != resp.TransferLeg.ConceptID {
					t.Error("both legs must share one concept id")
				}
			}
		})
	}
}
