package importer

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSingle is one column. Kitty sheets hold positive expense amounts;
	// bank exports hold signed movements where debits are negative.
	amountSingle amountMode = iota
	// amountSplit is separate debit and credit columns.
	amountSplit
)

// Profile describes the column layout of a sheet the importer accepts.
// Header names are matched case-insensitively.
type Profile struct {
	Name       string
	DateCol    string
	DateLayout string
	DescCol    string
	AmountMode amountMode
	AmountCol  string
	DebitCol   string
	CreditCol  string

	// Optional columns. Rows without a payer are paid by the uploader.
	PayerCol    string
	CategoryCol string

	// Bank exports mix income into the rows; only debits become expenses
	// and anything unparseable is skipped as a footer. Kitty sheets are
	// written for import, so every bad row is an error.
	BankExport bool
}

func (p Profile) requiredCols() []string {
	cols := []string{p.DateCol, p.DescCol}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.AmountCol)
	case amountSplit:
		cols = append(cols, p.DebitCol, p.CreditCol)
	}

	return cols
}

// profiles are tried in order; more specific layouts come first.
var profiles = []Profile{
	{
		Name:        "kitty",
		DateCol:     "date",
		DateLayout:  "2006-01-02",
		DescCol:     "description",
		AmountMode:  amountSingle,
		AmountCol:   "amount",
		PayerCol:    "payer",
		CategoryCol: "category",
	},
	{
		Name:       "cgd-cartão",
		DateCol:    "data",
		DateLayout: "02-01-2006",
		DescCol:    "descrição",
		AmountMode: amountSplit,
		DebitCol:   "débito",
		CreditCol:  "crédito",
		BankExport: true,
	},
	{
		Name:       "cgd-extrato",
		DateCol:    "data mov.",
		DateLayout: "02-01-2006",
		DescCol:    "descrição",
		AmountMode: amountSingle,
		AmountCol:  "movimento",
		BankExport: true,
	},
	{
		Name:       "cgd-conta",
		DateCol:    "data mov.",
		DateLayout: "02-01-2006",
		DescCol:    "descrição",
		AmountMode: amountSingle,
		AmountCol:  "montante",
		BankExport: true,
	},
}
