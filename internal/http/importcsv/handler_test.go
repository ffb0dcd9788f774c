package importcsv_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/expense"
	"github.com/MrJamesThe3rd/kitty/internal/http/auth"
	"github.com/MrJamesThe3rd/kitty/internal/http/importcsv"
	"github.com/MrJamesThe3rd/kitty/internal/importer"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
)

var (
	creator = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
	member  = uuid.MustParse("00000000-0000-0000-0000-0000000000c2")
	eventID = uuid.MustParse("00000000-0000-0000-0000-0000000000e1")
)

type fakeLedger struct {
	created []ledger.CreateExpenseParams
}

func (f *fakeLedger) GetEvent(_ context.Context, id, _ uuid.UUID) (*ledger.EventDetails, error) {
	return &ledger.EventDetails{Event: &pool.Event{ID: id, CreatorID: creator}}, nil
}

func (f *fakeLedger) CreateExpense(_ context.Context, p ledger.CreateExpenseParams) (*ledger.CreateExpenseResult, error) {
	if p.Description == "Too big" {
		return nil, apperr.InsufficientPool("pool cannot cover %s", p.Amount)
	}

	f.created = append(f.created, p)

	return &ledger.CreateExpenseResult{Expense: &expense.Expense{
		ID:      uuid.New(),
		EventID: p.EventID,
		PayerID: p.PayerID,
		Amount:  p.Amount,
		Status:  expense.StatusDeducted,
	}}, nil
}

func upload(t *testing.T, svc importcsv.Ledger, as uuid.UUID, query, sheet string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "expenses.csv")
	require.NoError(t, err)

	_, err = fw.Write([]byte(sheet))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := chi.NewRouter()
	r.Route("/events/{id}/expenses", importcsv.NewHandler(importer.NewParser(), svc).Routes)

	req := httptest.NewRequest(http.MethodPost, "/events/"+eventID.String()+"/expenses/import"+query, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithUserID(req.Context(), as))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestImport_CreatesOneExpensePerRow(t *testing.T) {
	svc := &fakeLedger{}

	sheet := "date;description;category;amount\n2026-03-01;Groceries;food;42.10\n2026-03-02;Too big;;999.99\n2026-03-03;Fuel;transport;30\n"

	rec := upload(t, svc, member, "", sheet)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Imported int `json:"imported"`
		Failed   []struct {
			Line  int    `json:"line"`
			Error string `json:"error"`
		} `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, 2, body.Imported)
	require.Len(t, body.Failed, 1)
	assert.Equal(t, 3, body.Failed[0].Line)
	assert.Contains(t, body.Failed[0].Error, "insufficient pool funds")

	require.Len(t, svc.created, 2)
	assert.Equal(t, member, svc.created[0].PayerID)
	assert.Equal(t, "food", svc.created[0].Category)
	assert.Equal(t, eventID, svc.created[1].EventID)
}

func TestImport_OnlyCreatorMayImportForOthers(t *testing.T) {
	sheet := "date;payer;description;amount\n2026-03-01;" + member.String() + ";Groceries;42.10\n"

	rec := upload(t, &fakeLedger{}, uuid.New(), "", sheet)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc := &fakeLedger{}
	rec = upload(t, svc, creator, "", sheet)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.created, 1)
	assert.Equal(t, member, svc.created[0].PayerID)
}

func TestImport_DryRunCreatesNothing(t *testing.T) {
	svc := &fakeLedger{}

	rec := upload(t, svc, member, "?dry_run=true", "date;description;amount\n2026-03-01;Groceries;42.10\n")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.created)

	var body struct {
		Profile string `json:"profile"`
		Charset string `json:"charset"`
		Rows    []struct {
			Line   int    `json:"line"`
			Amount string `json:"amount"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "kitty", body.Profile)
	assert.Equal(t, "UTF-8", body.Charset)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "42.1", body.Rows[0].Amount)
}

func TestImport_BadSheet(t *testing.T) {
	rec := upload(t, &fakeLedger{}, member, "", "date;description;amount\n2026-03-01;Lunch;-4\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
