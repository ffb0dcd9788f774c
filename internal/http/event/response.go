package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/pool"
	"github.com/MrJamesThe3rd/kitty/internal/rules"
	"github.com/MrJamesThe3rd/kitty/internal/settlement"
)

type eventResponse struct {
	ID          uuid.UUID       `json:"id"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Name        string          `json:"name"`
	Status      pool.Status     `json:"status"`
	TotalPool   decimal.Decimal `json:"total_pool"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Rules       rules.Rules     `json:"rules"`
	AuditRoot   string          `json:"audit_root,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

type participantResponse struct {
	UserID                uuid.UUID              `json:"user_id"`
	Status                pool.ParticipantStatus `json:"status"`
	PledgedDeposit        decimal.Decimal        `json:"pledged_deposit"`
	DepositAmount         decimal.Decimal        `json:"deposit_amount"`
	TotalSpent            decimal.Decimal        `json:"total_spent"`
	Balance               decimal.Decimal        `json:"balance"`
	AvailableContribution decimal.Decimal        `json:"available_contribution"`
	JoinedAt              time.Time              `json:"joined_at"`
}

type depositResponse struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Amount    decimal.Decimal    `json:"amount"`
	Source    pool.DepositSource `json:"source"`
	Reference string             `json:"reference,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type detailsResponse struct {
	eventResponse
	Participants []participantResponse `json:"participants"`
	Deposits     []depositResponse     `json:"deposits"`
}

type reliabilityResponse struct {
	UserID         uuid.UUID     `json:"user_id"`
	Score          int           `json:"score"`
	Tier           rules.Tier    `json:"tier"`
	History        rules.History `json:"history"`
	ForceApproval  bool          `json:"force_approval"`
	CanCreate      bool          `json:"can_create_events"`
	EffectiveRules rules.Rules   `json:"effective_rules"`
}

type transferResponse struct {
	From   *uuid.UUID      `json:"from"`
	To     uuid.UUID       `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Refund bool            `json:"refund"`
}

type settlementResponse struct {
	EventID   uuid.UUID          `json:"event_id"`
	Transfers []transferResponse `json:"transfers"`
}

func toEventResponse(ev *pool.Event) eventResponse {
	resp := eventResponse{
		ID:          ev.ID,
		CreatorID:   ev.CreatorID,
		Name:        ev.Name,
		Status:      ev.Status,
		TotalPool:   ev.TotalPool,
		TotalSpent:  ev.TotalSpent,
		Remaining:   ev.TotalPool.Sub(ev.TotalSpent),
		Rules:       ev.Rules,
		CreatedAt:   ev.CreatedAt,
		CompletedAt: ev.CompletedAt,
	}

	if !ev.AuditRoot.IsZero() {
		resp.AuditRoot = ev.AuditRoot.String()
	}

	return resp
}

func toParticipantResponse(p *pool.Participant) participantResponse {
	return participantResponse{
		UserID:                p.UserID,
		Status:                p.Status,
		PledgedDeposit:        p.PledgedDeposit,
		DepositAmount:         p.DepositAmount,
		TotalSpent:            p.TotalSpent,
		Balance:               p.Balance,
		AvailableContribution: p.AvailableContribution,
		JoinedAt:              p.JoinedAt,
	}
}

func toDetailsResponse(d *ledger.EventDetails) detailsResponse {
	resp := detailsResponse{
		eventResponse: toEventResponse(d.Event),
		Participants:  make([]participantResponse, 0, len(d.Participants)),
		Deposits:      make([]depositResponse, 0, len(d.Deposits)),
	}

	for _, p := range d.Participants {
		resp.Participants = append(resp.Participants, toParticipantResponse(p))
	}

	for _, dep := range d.Deposits {
		resp.Deposits = append(resp.Deposits, depositResponse{
			ID:        dep.ID,
			UserID:    dep.UserID,
			Amount:    dep.Amount,
			Source:    dep.Source,
			Reference: dep.Reference,
			CreatedAt: dep.CreatedAt,
		})
	}

	return resp
}

func toReliabilityResponse(userID uuid.UUID, r *ledger.ReliabilityReport) reliabilityResponse {
	return reliabilityResponse{
		UserID:         userID,
		Score:          r.Score,
		Tier:           r.Policy.Tier,
		History:        r.History,
		ForceApproval:  r.Policy.ForceApproval,
		CanCreate:      r.Policy.CanCreateEvents,
		EffectiveRules: r.EffectiveRules,
	}
}

// toTransfers renders refunds from the pool with a null sender.
func toTransfers(ts []settlement.Transfer) []transferResponse {
	out := make([]transferResponse, 0, len(ts))

	for _, t := range ts {
		resp := transferResponse{To: t.To, Amount: t.Amount}

		if t.From == settlement.Pool {
			resp.Refund = true
		} else {
			resp.From = &t.From
		}

		out = append(out, resp)
	}

	return out
}
