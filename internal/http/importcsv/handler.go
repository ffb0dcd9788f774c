package importcsv

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/apperr"
	"github.com/MrJamesThe3rd/kitty/internal/encoding"
	expenseHandler "github.com/MrJamesThe3rd/kitty/internal/http/expense"
	"github.com/MrJamesThe3rd/kitty/internal/http/respond"
	"github.com/MrJamesThe3rd/kitty/internal/importer"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/split"
)

const maxUpload = 10 << 20

type Ledger interface {
	GetEvent(ctx context.Context, eventID, actorID uuid.UUID) (*ledger.EventDetails, error)
	CreateExpense(ctx context.Context, params ledger.CreateExpenseParams) (*ledger.CreateExpenseResult, error)
}

type Handler struct {
	parser *importer.Parser
	svc    Ledger
}

func NewHandler(parser *importer.Parser, svc Ledger) *Handler {
	return &Handler{parser: parser, svc: svc}
}

// Routes are mounted under /events/{id}/expenses.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/import", h.importCSV)
}

type rowDTO struct {
	Line        int             `json:"line"`
	Date        time.Time       `json:"date"`
	PayerID     uuid.UUID       `json:"payer_id"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

type failureDTO struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type previewResponse struct {
	Profile string           `json:"profile"`
	Charset encoding.Charset `json:"charset"`
	Rows    []rowDTO         `json:"rows"`
}

type importResponse struct {
	Profile  string                    `json:"profile"`
	Imported int                       `json:"imported"`
	Expenses []expenseHandler.Response `json:"expenses"`
	Failed   []failureDTO              `json:"failed"`
}

// importCSV creates one equal-split expense per sheet row. Each row is its
// own ledger transaction: a row the ledger refuses is reported and the
// rest still go through. ?dry_run=true only parses.
func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	actor, err := respond.Actor(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	eventID, err := respond.ID(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := r.ParseMultipartForm(maxUpload); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := h.parser.Parse(file, actor)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run")); dryRun {
		respond.JSON(w, http.StatusOK, toPreview(res))
		return
	}

	if err := h.authorize(r.Context(), eventID, actor, res.Rows); err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := importResponse{Profile: res.Profile, Expenses: []expenseHandler.Response{}, Failed: []failureDTO{}}

	for _, row := range res.Rows {
		created, err := h.svc.CreateExpense(r.Context(), ledger.CreateExpenseParams{
			EventID:     eventID,
			PayerID:     row.PayerID,
			Amount:      row.Amount,
			Description: row.Description,
			Category:    row.Category,
			Strategy:    split.StrategyEqual,
		})
		if err != nil {
			if !apperr.IsBusiness(err) {
				respond.Error(w, r, err)
				return
			}

			resp.Failed = append(resp.Failed, failureDTO{Line: row.Line, Error: err.Error()})

			continue
		}

		resp.Expenses = append(resp.Expenses, expenseHandler.ToResponse(created.Expense))
	}

	resp.Imported = len(resp.Expenses)

	status := http.StatusCreated
	if resp.Imported == 0 && len(resp.Failed) > 0 {
		status = http.StatusUnprocessableEntity
	}

	respond.JSON(w, status, resp)
}

// authorize lets only the event creator import expenses paid by others.
func (h *Handler) authorize(ctx context.Context, eventID, actor uuid.UUID, rows []importer.Row) error {
	for _, row := range rows {
		if row.PayerID == actor {
			continue
		}

		details, err := h.svc.GetEvent(ctx, eventID, actor)
		if err != nil {
			return err
		}

		if details.Event.CreatorID != actor {
			return apperr.Unauthorized("only the event creator can import expenses paid by others (line %d)", row.Line)
		}

		return nil
	}

	return nil
}

func toPreview(res *importer.Result) previewResponse {
	out := previewResponse{Profile: res.Profile, Charset: res.Charset, Rows: make([]rowDTO, 0, len(res.Rows))}

	for _, row := range res.Rows {
		out.Rows = append(out.Rows, rowDTO{
			Line:        row.Line,
			Date:        row.Date,
			PayerID:     row.PayerID,
			Description: row.Description,
			Category:    row.Category,
			Amount:      row.Amount,
		})
	}

	return out
}
